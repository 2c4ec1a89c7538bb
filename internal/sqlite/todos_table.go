package sqlite

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

var todoColumns = []string{
	"t.id", "t.title", "t.description", "t.status",
	"COALESCE(t.priority, 0) AS priority",
	"t.group_id", "t.assignee", "t.start_date", "t.due_date", "t.completed_at",
	"t.created_at", "t.updated_at",
}

// completedAtExpr keeps completed_at non-null exactly when status is done.
// The first argument is the new status, the second the completion time.
const completedAtExpr = "CASE WHEN ? = 2 THEN COALESCE(completed_at, ?) ELSE NULL END"

// TodosTable is the repository for todos and their tag links.
type TodosTable struct {
	store *Store
}

// Todos returns the todo repository.
func (s *Store) Todos() *TodosTable {
	return &TodosTable{store: s}
}

// List returns todos matching f with their tags. Open todos come first, then
// higher priority, earlier due date, and newest creation.
func (tt *TodosTable) List(ctx context.Context, f types.TodoFilter) ([]types.Todo, error) {
	query := sq.Select(todoColumns...).From("todos t")

	if f.GroupID != nil {
		query = query.Where(sq.Eq{"t.group_id": *f.GroupID})
	}
	if f.TagID != nil {
		query = query.Where("EXISTS (SELECT 1 FROM todo_tags x WHERE x.todo_id = t.id AND x.tag_id = ?)", *f.TagID)
	}
	if f.Status != nil {
		query = query.Where(sq.Eq{"t.status": int(*f.Status)})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		query = query.Where(sq.Or{
			sq.Like{"t.title": pattern},
			sq.Like{"t.description": pattern},
		})
	}
	if f.Priority != nil {
		query = query.Where(sq.Eq{"COALESCE(t.priority, 0)": *f.Priority})
	}
	if f.DueFrom != nil {
		query = query.Where(sq.GtOrEq{"t.due_date": *f.DueFrom})
	}
	if f.DueTo != nil {
		query = query.Where(sq.Lt{"t.due_date": *f.DueTo})
	}

	query = query.OrderBy(
		"CASE WHEN t.status = 2 THEN 1 ELSE 0 END",
		"priority DESC",
		"t.due_date IS NULL",
		"t.due_date ASC",
		"t.created_at DESC",
	)

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build todo query: %w", err)
	}

	var todos []types.Todo
	err = tt.store.withDB(func(db *sqlx.DB) error {
		if err := db.SelectContext(ctx, &todos, stmt, args...); err != nil {
			return err
		}
		return hydrateTags(ctx, db, todos)
	})
	if err != nil {
		return nil, fmt.Errorf("list todos: %w", err)
	}
	return todos, nil
}

// taggedRow is a tag joined to the todo that carries it.
type taggedRow struct {
	TodoID int64 `db:"todo_id"`
	types.Tag
}

// hydrateTags fills the Tags field of every todo with one query.
func hydrateTags(ctx context.Context, q sqlx.QueryerContext, todos []types.Todo) error {
	if len(todos) == 0 {
		return nil
	}
	ids := make([]int64, len(todos))
	index := make(map[int64]int, len(todos))
	for i, t := range todos {
		ids[i] = t.ID
		index[t.ID] = i
	}

	stmt, args, err := sq.Select("x.todo_id", "g.id", "g.name", "g.color", "g.created_at").
		From("todo_tags x").
		Join("tags g ON g.id = x.tag_id").
		Where(sq.Eq{"x.todo_id": ids}).
		OrderBy("g.name").
		ToSql()
	if err != nil {
		return err
	}

	var rows []taggedRow
	if err := sqlx.SelectContext(ctx, q, &rows, stmt, args...); err != nil {
		return fmt.Errorf("load tags: %w", err)
	}
	for _, r := range rows {
		i := index[r.TodoID]
		todos[i].Tags = append(todos[i].Tags, r.Tag)
	}
	return nil
}

// Get returns a todo with its tags, steps, and attachments.
func (tt *TodosTable) Get(ctx context.Context, id int64) (*types.Todo, error) {
	var todo types.Todo
	err := tt.store.withDB(func(db *sqlx.DB) error {
		stmt, args, err := sq.Select(todoColumns...).From("todos t").Where(sq.Eq{"t.id": id}).ToSql()
		if err != nil {
			return err
		}
		if err := db.GetContext(ctx, &todo, stmt, args...); err != nil {
			if isNoRows(err) {
				return types.ErrNotFound
			}
			return err
		}

		list := []types.Todo{todo}
		if err := hydrateTags(ctx, db, list); err != nil {
			return err
		}
		todo.Tags = list[0].Tags

		if err := db.SelectContext(ctx, &todo.Steps,
			"SELECT "+stepColumns+" FROM todo_steps WHERE todo_id = ? ORDER BY sort_order, id", id); err != nil {
			return fmt.Errorf("load steps: %w", err)
		}
		if err := db.SelectContext(ctx, &todo.Attachments,
			"SELECT "+attachmentColumns+" FROM attachments WHERE todo_id = ? ORDER BY created_at, id", id); err != nil {
			return fmt.Errorf("load attachments: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get todo %d: %w", id, err)
	}
	return &todo, nil
}

// Create inserts a todo with status todo and links its tags in the same
// transaction.
func (tt *TodosTable) Create(ctx context.Context, n types.NewTodo) (*types.Todo, error) {
	title := strings.TrimSpace(n.Title)
	if title == "" {
		return nil, types.ErrInvalidTitle
	}

	now := tt.store.now()
	todo := types.Todo{
		Title:       title,
		Description: n.Description,
		Status:      types.StatusTodo,
		Priority:    n.Priority,
		GroupID:     n.GroupID,
		StartDate:   n.StartDate,
		DueDate:     n.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	err := tt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if n.GroupID != nil {
			if err := requireRow(ctx, tx, "task_groups", *n.GroupID); err != nil {
				return fmt.Errorf("group %d: %w", *n.GroupID, err)
			}
		}
		res, err := tx.NamedExecContext(ctx, `
			INSERT INTO todos (title, description, status, priority, group_id, start_date, due_date, created_at, updated_at)
			VALUES (:title, :description, :status, :priority, :group_id, :start_date, :due_date, :created_at, :updated_at)`,
			&todo)
		if err != nil {
			return err
		}
		if todo.ID, err = res.LastInsertId(); err != nil {
			return err
		}
		return setTags(ctx, tx, todo.ID, n.TagIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("create todo: %w", err)
	}
	return tt.Get(ctx, todo.ID)
}

// setTags replaces the tag links of a todo.
func setTags(ctx context.Context, tx *sqlx.Tx, todoID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM todo_tags WHERE todo_id = ?", todoID); err != nil {
		return fmt.Errorf("clear tags: %w", err)
	}
	for _, tagID := range tagIDs {
		if err := requireRow(ctx, tx, "tags", tagID); err != nil {
			return fmt.Errorf("tag %d: %w", tagID, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO todo_tags (todo_id, tag_id) VALUES (?, ?)", todoID, tagID); err != nil {
			return fmt.Errorf("link tag %d: %w", tagID, err)
		}
	}
	return nil
}

// Update applies a partial update. A status change maintains completed_at;
// a non-nil TagIDs replaces the tag set.
func (tt *TodosTable) Update(ctx context.Context, id int64, u types.TodoUpdate) (*types.Todo, error) {
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return nil, types.ErrInvalidTitle
	}
	if u.Status != nil && !u.Status.Valid() {
		return nil, types.ErrInvalidStatus
	}

	now := tt.store.now()
	set := sq.Eq{"updated_at": now}
	if u.Title != nil {
		set["title"] = strings.TrimSpace(*u.Title)
	}
	nullable(set, "description", u.Description, u.ClearDescription)
	nullable(set, "group_id", u.GroupID, u.ClearGroup)
	nullable(set, "assignee", u.Assignee, u.ClearAssignee)
	nullable(set, "start_date", u.StartDate, u.ClearStartDate)
	nullable(set, "due_date", u.DueDate, u.ClearDueDate)
	if u.Priority != nil {
		set["priority"] = *u.Priority
	}
	if u.Status != nil {
		set["status"] = int(*u.Status)
		set["completed_at"] = sq.Expr(completedAtExpr, int(*u.Status), now)
	}

	stmt, args, err := sq.Update("todos").SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build todo update: %w", err)
	}

	err = tt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if u.GroupID != nil && !u.ClearGroup {
			if err := requireRow(ctx, tx, "task_groups", *u.GroupID); err != nil {
				return fmt.Errorf("group %d: %w", *u.GroupID, err)
			}
		}
		res, err := tx.ExecContext(ctx, stmt, args...)
		if err != nil {
			return err
		}
		if err := rowsAffected(res); err != nil {
			return err
		}
		if u.TagIDs != nil {
			return setTags(ctx, tx, id, u.TagIDs)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update todo %d: %w", id, err)
	}
	return tt.Get(ctx, id)
}

// nullable sets column to *v, or to NULL when clear is true.
func nullable[T any](set sq.Eq, column string, v *T, clear bool) {
	switch {
	case clear:
		set[column] = nil
	case v != nil:
		set[column] = *v
	}
}

// UpdateStatus sets the status and maintains completed_at.
func (tt *TodosTable) UpdateStatus(ctx context.Context, id int64, status types.TodoStatus) error {
	if !status.Valid() {
		return types.ErrInvalidStatus
	}
	now := tt.store.now()
	err := tt.store.withDB(func(db *sqlx.DB) error {
		res, err := db.ExecContext(ctx,
			"UPDATE todos SET status = ?, completed_at = "+completedAtExpr+", updated_at = ? WHERE id = ?",
			int(status), int(status), now, now, id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
	if err != nil {
		return fmt.Errorf("update status of todo %d: %w", id, err)
	}
	return nil
}

// Delete removes a todo with its steps, attachments, and tag links. The
// attachment rows that were removed are returned so their files can be
// deleted by the caller.
func (tt *TodosTable) Delete(ctx context.Context, id int64) ([]types.Attachment, error) {
	var removed []types.Attachment
	err := tt.store.withTx(ctx, func(tx *sqlx.Tx) error {
		if err := tx.SelectContext(ctx, &removed,
			"SELECT "+attachmentColumns+" FROM attachments WHERE todo_id = ?", id); err != nil {
			return err
		}
		for _, table := range []string{"todo_tags", "todo_steps", "attachments"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE todo_id = ?", id); err != nil {
				return err
			}
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM todos WHERE id = ?", id)
		if err != nil {
			return err
		}
		return rowsAffected(res)
	})
	if err != nil {
		return nil, fmt.Errorf("delete todo %d: %w", id, err)
	}
	return removed, nil
}
