package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

const tagColumns = `id, name, color, created_at`

// TagsTable is the repository for tags.
type TagsTable struct {
	store *Store
}

// Tags returns the tag repository.
func (s *Store) Tags() *TagsTable {
	return &TagsTable{store: s}
}

// List returns all tags ordered by name.
func (tt *TagsTable) List(ctx context.Context) ([]types.Tag, error) {
	var tags []types.Tag
	err := tt.store.withDB(func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &tags, "SELECT "+tagColumns+" FROM tags ORDER BY name")
	})
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Get returns the tag with id, or ErrNotFound.
func (tt *TagsTable) Get(ctx context.Context, id int64) (*types.Tag, error) {
	var tag types.Tag
	err := tt.store.withDB(func(db *sqlx.DB) error {
		return db.GetContext(ctx, &tag, "SELECT "+tagColumns+" FROM tags WHERE id = ?", id)
	})
	if isNoRows(err) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tag %d: %w", id, err)
	}
	return &tag, nil
}

// Create inserts a tag. An empty color uses the default swatch. Returns
// ErrDuplicateName when the name is taken.
func (tt *TagsTable) Create(ctx context.Context, name, color string) (*types.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrInvalidName
	}
	if color == "" {
		color = types.DefaultColor
	}

	tag := types.Tag{Name: name, Color: color, CreatedAt: tt.store.now()}
	err := tt.store.withDB(func(db *sqlx.DB) error {
		res, err := db.NamedExecContext(ctx,
			"INSERT INTO tags (name, color, created_at) VALUES (:name, :color, :created_at)", &tag)
		if err != nil {
			return err
		}
		tag.ID, err = res.LastInsertId()
		return err
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("create tag %q: %w", name, types.ErrDuplicateName)
	}
	if err != nil {
		return nil, fmt.Errorf("create tag: %w", err)
	}
	return &tag, nil
}

// Update applies a partial update and returns the stored tag.
func (tt *TagsTable) Update(ctx context.Context, id int64, u types.TagUpdate) (*types.Tag, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, types.ErrInvalidName
	}

	var tag types.Tag
	err := tt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &tag, "SELECT "+tagColumns+" FROM tags WHERE id = ?", id); err != nil {
			if isNoRows(err) {
				return types.ErrNotFound
			}
			return err
		}
		if u.Name != nil {
			tag.Name = strings.TrimSpace(*u.Name)
		}
		if u.Color != nil {
			tag.Color = *u.Color
		}
		_, err := tx.NamedExecContext(ctx, "UPDATE tags SET name = :name, color = :color WHERE id = :id", &tag)
		return err
	})
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("update tag %d: %w", id, types.ErrDuplicateName)
	}
	if err != nil {
		return nil, fmt.Errorf("update tag %d: %w", id, err)
	}
	return &tag, nil
}

// Delete removes a tag and its todo links.
func (tt *TagsTable) Delete(ctx context.Context, id int64) error {
	err := tt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "DELETE FROM todo_tags WHERE tag_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM tags WHERE id = ?", id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
	if err != nil {
		return fmt.Errorf("delete tag %d: %w", id, err)
	}
	return nil
}
