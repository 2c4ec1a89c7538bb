package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

const groupColumns = `id, name, parent_id, icon, color, COALESCE(sort_order, 0) AS sort_order, created_at, updated_at`

// GroupsTable is the repository for task_groups.
type GroupsTable struct {
	store *Store
}

// Groups returns the task group repository.
func (s *Store) Groups() *GroupsTable {
	return &GroupsTable{store: s}
}

// List returns all groups ordered by sort_order, then name.
func (gt *GroupsTable) List(ctx context.Context) ([]types.TaskGroup, error) {
	var groups []types.TaskGroup
	err := gt.store.withDB(func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &groups,
			"SELECT "+groupColumns+" FROM task_groups ORDER BY sort_order, name")
	})
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

// Get returns the group with id, or ErrNotFound.
func (gt *GroupsTable) Get(ctx context.Context, id int64) (*types.TaskGroup, error) {
	var g types.TaskGroup
	err := gt.store.withDB(func(db *sqlx.DB) error {
		return db.GetContext(ctx, &g, "SELECT "+groupColumns+" FROM task_groups WHERE id = ?", id)
	})
	if isNoRows(err) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group %d: %w", id, err)
	}
	return &g, nil
}

// Create inserts a group at the end of the sort order. Icon and color
// default when nil; a non-nil parent must exist.
func (gt *GroupsTable) Create(ctx context.Context, name string, parentID *int64, icon, color *string) (*types.TaskGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, types.ErrInvalidName
	}
	if icon == nil {
		icon = ptr(types.DefaultGroupIcon)
	}
	if color == nil {
		color = ptr(types.DefaultColor)
	}

	now := gt.store.now()
	g := types.TaskGroup{
		Name:      name,
		ParentID:  parentID,
		Icon:      icon,
		Color:     color,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := gt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if parentID != nil {
			if err := requireRow(ctx, tx, "task_groups", *parentID); err != nil {
				return fmt.Errorf("parent group: %w", err)
			}
		}
		if err := tx.GetContext(ctx, &g.SortOrder,
			"SELECT COALESCE(MAX(sort_order), 0) + 10 FROM task_groups"); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO task_groups (name, parent_id, icon, color, sort_order, created_at, updated_at)
			VALUES (:name, :parent_id, :icon, :color, :sort_order, :created_at, :updated_at)`, &g)
		if err != nil {
			return err
		}
		g.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &g, nil
}

// Update applies a partial update and returns the stored group.
func (gt *GroupsTable) Update(ctx context.Context, id int64, u types.GroupUpdate) (*types.TaskGroup, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, types.ErrInvalidName
	}
	if u.ParentID != nil && *u.ParentID == id {
		return nil, types.ErrSelfParent
	}

	var g types.TaskGroup
	err := gt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &g, "SELECT "+groupColumns+" FROM task_groups WHERE id = ?", id); err != nil {
			if isNoRows(err) {
				return types.ErrNotFound
			}
			return err
		}

		if u.Name != nil {
			g.Name = strings.TrimSpace(*u.Name)
		}
		switch {
		case u.ClearParent:
			g.ParentID = nil
		case u.ParentID != nil:
			if err := requireRow(ctx, tx, "task_groups", *u.ParentID); err != nil {
				return fmt.Errorf("parent group: %w", err)
			}
			g.ParentID = u.ParentID
		}
		if u.Icon != nil {
			g.Icon = u.Icon
		}
		if u.Color != nil {
			g.Color = u.Color
		}
		g.UpdatedAt = gt.store.now()

		_, err := tx.NamedExecContext(ctx, `
			UPDATE task_groups
			SET name = :name, parent_id = :parent_id, icon = :icon, color = :color, updated_at = :updated_at
			WHERE id = :id`, &g)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("update group %d: %w", id, err)
	}
	return &g, nil
}

// Delete removes a group. Todos in the group and child groups are detached,
// not deleted.
func (gt *GroupsTable) Delete(ctx context.Context, id int64) error {
	err := gt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, "UPDATE todos SET group_id = NULL WHERE group_id = ?", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, "UPDATE task_groups SET parent_id = NULL WHERE parent_id = ?", id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM task_groups WHERE id = ?", id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
	if err != nil {
		return fmt.Errorf("delete group %d: %w", id, err)
	}
	return nil
}

// requireRow returns ErrNotFound unless table has a row with id.
func requireRow(ctx context.Context, q sqlx.QueryerContext, table string, id int64) error {
	var n int
	if err := sqlx.GetContext(ctx, q, &n, "SELECT COUNT(*) FROM "+table+" WHERE id = ?", id); err != nil {
		return err
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
