package sqlite

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

const attachmentColumns = `id, todo_id, name, file_path, COALESCE(file_size, 0) AS file_size, mime_type, created_at`

// AttachmentsTable is the repository for attachment records. The files
// themselves live in the attachments directory and are managed by the
// caller.
type AttachmentsTable struct {
	store *Store
}

// Attachments returns the attachment repository.
func (s *Store) Attachments() *AttachmentsTable {
	return &AttachmentsTable{store: s}
}

// ListByTodo returns the attachments of a todo, oldest first.
func (at *AttachmentsTable) ListByTodo(ctx context.Context, todoID int64) ([]types.Attachment, error) {
	var atts []types.Attachment
	err := at.store.withDB(func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &atts,
			"SELECT "+attachmentColumns+" FROM attachments WHERE todo_id = ? ORDER BY created_at, id", todoID)
	})
	if err != nil {
		return nil, fmt.Errorf("list attachments of todo %d: %w", todoID, err)
	}
	return atts, nil
}

// Get returns the attachment with id, or ErrNotFound.
func (at *AttachmentsTable) Get(ctx context.Context, id int64) (*types.Attachment, error) {
	var a types.Attachment
	err := at.store.withDB(func(db *sqlx.DB) error {
		return db.GetContext(ctx, &a, "SELECT "+attachmentColumns+" FROM attachments WHERE id = ?", id)
	})
	if isNoRows(err) {
		return nil, types.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get attachment %d: %w", id, err)
	}
	return &a, nil
}

// Create records an attachment for an existing todo. ID and CreatedAt are
// assigned by the store.
func (at *AttachmentsTable) Create(ctx context.Context, a types.Attachment) (*types.Attachment, error) {
	if a.Name == "" || a.FilePath == "" {
		return nil, types.ErrInvalidName
	}
	a.CreatedAt = at.store.now()

	err := at.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireRow(ctx, tx, "todos", a.TodoID); err != nil {
			return fmt.Errorf("todo %d: %w", a.TodoID, err)
		}
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO attachments (todo_id, name, file_path, file_size, mime_type, created_at)
			VALUES (:todo_id, :name, :file_path, :file_size, :mime_type, :created_at)`, &a)
		if err != nil {
			return err
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return &a, nil
}

// Delete removes an attachment record and returns it so the caller can
// remove the file.
func (at *AttachmentsTable) Delete(ctx context.Context, id int64) (*types.Attachment, error) {
	var a types.Attachment
	err := at.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.GetContext(ctx, &a, "SELECT "+attachmentColumns+" FROM attachments WHERE id = ?", id); err != nil {
			if isNoRows(err) {
				return types.ErrNotFound
			}
			return err
		}
		_, err := tx.ExecContext(ctx, "DELETE FROM attachments WHERE id = ?", id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("delete attachment %d: %w", id, err)
	}
	return &a, nil
}
