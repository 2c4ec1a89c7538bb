package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

const stepColumns = `id, todo_id, title, COALESCE(is_completed, 0) AS is_completed, COALESCE(sort_order, 0) AS sort_order, created_at`

// StepsTable is the repository for todo_steps.
type StepsTable struct {
	store *Store
}

// Steps returns the step repository.
func (s *Store) Steps() *StepsTable {
	return &StepsTable{store: s}
}

// ListByTodo returns the steps of a todo in display order.
func (st *StepsTable) ListByTodo(ctx context.Context, todoID int64) ([]types.TodoStep, error) {
	var steps []types.TodoStep
	err := st.store.withDB(func(db *sqlx.DB) error {
		return db.SelectContext(ctx, &steps,
			"SELECT "+stepColumns+" FROM todo_steps WHERE todo_id = ? ORDER BY sort_order, id", todoID)
	})
	if err != nil {
		return nil, fmt.Errorf("list steps of todo %d: %w", todoID, err)
	}
	return steps, nil
}

// Create appends a step to a todo.
func (st *StepsTable) Create(ctx context.Context, todoID int64, title string) (*types.TodoStep, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, types.ErrInvalidTitle
	}

	step := types.TodoStep{TodoID: todoID, Title: title, CreatedAt: st.store.now()}
	err := st.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := requireRow(ctx, tx, "todos", todoID); err != nil {
			return fmt.Errorf("todo %d: %w", todoID, err)
		}
		if err := tx.GetContext(ctx, &step.SortOrder,
			"SELECT COALESCE(MAX(sort_order), 0) + 10 FROM todo_steps WHERE todo_id = ?", todoID); err != nil {
			return err
		}
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO todo_steps (todo_id, title, is_completed, sort_order, created_at)
			VALUES (:todo_id, :title, :is_completed, :sort_order, :created_at)`, &step)
		if err != nil {
			return err
		}
		step.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create step: %w", err)
	}
	return &step, nil
}

// Toggle flips the completion flag and returns the updated step.
func (st *StepsTable) Toggle(ctx context.Context, id int64) (*types.TodoStep, error) {
	var step types.TodoStep
	err := st.store.withTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			"UPDATE todo_steps SET is_completed = 1 - COALESCE(is_completed, 0) WHERE id = ?", id)
		if err != nil {
			return err
		}
		if err := rowsAffected(res); err != nil {
			return err
		}
		return tx.GetContext(ctx, &step, "SELECT "+stepColumns+" FROM todo_steps WHERE id = ?", id)
	})
	if err != nil {
		return nil, fmt.Errorf("toggle step %d: %w", id, err)
	}
	return &step, nil
}

// Delete removes a step.
func (st *StepsTable) Delete(ctx context.Context, id int64) error {
	err := st.store.withDB(func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx, "DELETE FROM todo_steps WHERE id = ?", id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
	if err != nil {
		return fmt.Errorf("delete step %d: %w", id, err)
	}
	return nil
}
