package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// legacyStatusCase maps the text status column to its integer value.
// Values that are already integers in range are kept.
const legacyStatusCase = `CASE
    WHEN typeof(status) = 'integer' AND status BETWEEN 0 AND 2 THEN status
    WHEN LOWER(status) = 'todo' THEN 0
    WHEN LOWER(status) = 'in_progress' THEN 1
    WHEN LOWER(status) = 'done' THEN 2
    ELSE 0
END`

// migrateIntegerStatus converts todos.status from text to the integer enum
// by rebuilding the todos table. Foreign keys are off for the step, so
// dropping the old table does not cascade into steps, attachments, or tags.
func migrateIntegerStatus(ctx context.Context, tx *sqlx.Tx, logger *slog.Logger) error {
	if _, err := tx.ExecContext(ctx,
		"ALTER TABLE todos ADD COLUMN status_new INTEGER NOT NULL DEFAULT 0"); err != nil {
		return fmt.Errorf("add status_new: %w", err)
	}

	res, err := tx.ExecContext(ctx, "UPDATE todos SET status_new = "+legacyStatusCase)
	if err != nil {
		return fmt.Errorf("convert status: %w", err)
	}
	converted, _ := res.RowsAffected()

	marked, err := hasColumn(ctx, tx, tableTodos, "is_marked")
	if err != nil {
		return err
	}
	priorityExpr := "priority"
	if marked {
		priorityExpr = "MAX(COALESCE(priority, 0), COALESCE(is_marked, 0))"
	}

	if _, err := tx.ExecContext(ctx, createShadowSQL(tableTodos, todosColumns)); err != nil {
		return fmt.Errorf("create todos shadow: %w", err)
	}

	_, err = tx.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO todos_new (id, title, description, status, priority, group_id, assignee,
		                       start_date, due_date, completed_at, created_at, updated_at)
		SELECT id, title, description, status_new, %s, group_id, assignee,
		       start_date, due_date, completed_at, created_at, updated_at
		FROM todos`, priorityExpr))
	if err != nil {
		return fmt.Errorf("copy todos: %w", err)
	}

	if err := swapShadow(ctx, tx, tableTodos); err != nil {
		return err
	}

	for _, ddl := range todosIndexDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}

	logger.Info("status converted", "rows", converted)
	return nil
}
