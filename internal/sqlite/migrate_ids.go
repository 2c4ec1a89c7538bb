package sqlite

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/rtodo/rtodo/pkg/types"
)

// idRemap holds the old text id to new integer id mapping for each parent
// table while the shadow tables are filled.
type idRemap struct {
	groups map[string]int64
	tags   map[string]int64
	todos  map[string]int64

	// todoOrder lists new todo ids in the order the rows were migrated.
	todoOrder []int64
}

type legacyGroup struct {
	ID        string  `db:"id"`
	Name      string  `db:"name"`
	ParentID  *string `db:"parent_id"`
	Icon      *string `db:"icon"`
	Color     *string `db:"color"`
	SortOrder int64   `db:"sort_order"`
	CreatedAt int64   `db:"created_at"`
	UpdatedAt int64   `db:"updated_at"`
}

type legacyTodo struct {
	ID          string  `db:"id"`
	Title       string  `db:"title"`
	Description *string `db:"description"`
	Status      any     `db:"status"`
	Priority    int64   `db:"priority"`
	IsMarked    int64   `db:"is_marked"`
	GroupID     *string `db:"group_id"`
	Assignee    *string `db:"assignee"`
	StartDate   *int64  `db:"start_date"`
	DueDate     *int64  `db:"due_date"`
	CompletedAt *int64  `db:"completed_at"`
	CreatedAt   int64   `db:"created_at"`
	UpdatedAt   int64   `db:"updated_at"`
}

type legacyStep struct {
	TodoID      string `db:"todo_id"`
	Title       string `db:"title"`
	IsCompleted int64  `db:"is_completed"`
	SortOrder   int64  `db:"sort_order"`
	CreatedAt   int64  `db:"created_at"`
}

type legacyAttachment struct {
	TodoID    string  `db:"todo_id"`
	Name      string  `db:"name"`
	FilePath  string  `db:"file_path"`
	FileSize  *int64  `db:"file_size"`
	MimeType  *string `db:"mime_type"`
	CreatedAt int64   `db:"created_at"`
}

type legacyTodoTag struct {
	TodoID string `db:"todo_id"`
	TagID  string `db:"tag_id"`
}

// migrateIntegerIDs rebuilds every table with integer auto-increment keys
// and rewrites foreign keys through the captured id maps.
//
// The todo side of todo_tags has no surviving key, so the n-th join row is
// paired with the n-th migrated todo. Rows past the last todo or naming an
// unknown tag are dropped.
func migrateIntegerIDs(ctx context.Context, tx *sqlx.Tx, logger *slog.Logger) error {
	tables, err := existingTables(ctx, tx)
	if err != nil {
		return err
	}

	m := &idRemap{
		groups: make(map[string]int64),
		tags:   make(map[string]int64),
		todos:  make(map[string]int64),
	}

	var rebuilt []string

	if tables[tableTaskGroups] {
		if err := migrateGroups(ctx, tx, m, logger); err != nil {
			return err
		}
		rebuilt = append(rebuilt, tableTaskGroups)
	}
	if tables[tableTags] {
		if err := migrateTags(ctx, tx, m); err != nil {
			return err
		}
		rebuilt = append(rebuilt, tableTags)
	}
	if tables[tableTodos] {
		if err := migrateTodos(ctx, tx, m); err != nil {
			return err
		}
		rebuilt = append(rebuilt, tableTodos)
	}
	if tables[tableTodoSteps] {
		if err := migrateSteps(ctx, tx, m, logger); err != nil {
			return err
		}
		rebuilt = append(rebuilt, tableTodoSteps)
	}
	if tables[tableAttachments] {
		if err := migrateAttachments(ctx, tx, m, logger); err != nil {
			return err
		}
		rebuilt = append(rebuilt, tableAttachments)
	}
	if tables[tableTodoTags] {
		if err := migrateTodoTags(ctx, tx, m, logger); err != nil {
			return err
		}
		rebuilt = append(rebuilt, tableTodoTags)
	}

	for _, name := range rebuilt {
		if err := swapShadow(ctx, tx, name); err != nil {
			return err
		}
	}

	// Tables absent from the legacy file are created so every index below
	// has a table to attach to.
	for _, def := range schemaTables {
		if _, err := tx.ExecContext(ctx, createTableSQL(def)); err != nil {
			return fmt.Errorf("create table %s: %w", def.name, err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("rebuild index: %w", err)
		}
	}

	logger.Info("ids remapped",
		"groups", len(m.groups),
		"tags", len(m.tags),
		"todos", len(m.todos))
	return nil
}

// swapShadow drops the original table and renames its shadow into place.
func swapShadow(ctx context.Context, tx *sqlx.Tx, name string) error {
	if _, err := tx.ExecContext(ctx, "DROP TABLE "+name); err != nil {
		return fmt.Errorf("drop %s: %w", name, err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", shadowName(name), name)); err != nil {
		return fmt.Errorf("rename %s: %w", shadowName(name), err)
	}
	return nil
}

func migrateGroups(ctx context.Context, tx *sqlx.Tx, m *idRemap, logger *slog.Logger) error {
	if _, err := tx.ExecContext(ctx, createShadowSQL(tableTaskGroups, taskGroupsColumns)); err != nil {
		return fmt.Errorf("create task_groups shadow: %w", err)
	}

	var rows []legacyGroup
	err := tx.SelectContext(ctx, &rows, `
		SELECT CAST(id AS TEXT) AS id, name, CAST(parent_id AS TEXT) AS parent_id,
		       icon, color, COALESCE(sort_order, 0) AS sort_order, created_at, updated_at
		FROM task_groups ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("read task_groups: %w", err)
	}

	for _, g := range rows {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO task_groups_new (name, parent_id, icon, color, sort_order, created_at, updated_at)
			VALUES (?, NULL, ?, ?, ?, ?, ?)`,
			g.Name, g.Icon, g.Color, g.SortOrder, g.CreatedAt, g.UpdatedAt)
		if err != nil {
			return fmt.Errorf("copy group %s: %w", g.ID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("copy group %s: %w", g.ID, err)
		}
		m.groups[g.ID] = id
	}

	// Parents may appear after their children, so links are restored once
	// every group has its new id.
	var detached int
	for _, g := range rows {
		if g.ParentID == nil {
			continue
		}
		parent, ok := m.groups[*g.ParentID]
		if !ok {
			detached++
			continue
		}
		if _, err := tx.ExecContext(ctx,
			"UPDATE task_groups_new SET parent_id = ? WHERE id = ?", parent, m.groups[g.ID]); err != nil {
			return fmt.Errorf("link group %s: %w", g.ID, err)
		}
	}
	if detached > 0 {
		logger.Warn("groups with unknown parent moved to top level", "count", detached)
	}
	return nil
}

func migrateTags(ctx context.Context, tx *sqlx.Tx, m *idRemap) error {
	if _, err := tx.ExecContext(ctx, createShadowSQL(tableTags, tagsColumns)); err != nil {
		return fmt.Errorf("create tags shadow: %w", err)
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO tags_new (name, color, created_at)
		SELECT name, COALESCE(color, ?), created_at FROM tags ORDER BY rowid`,
		types.DefaultColor)
	if err != nil {
		return fmt.Errorf("copy tags: %w", err)
	}

	// Tag names are unique, so the name carries identity across the copy.
	var pairs []struct {
		OldID string `db:"old_id"`
		NewID int64  `db:"new_id"`
	}
	err = tx.SelectContext(ctx, &pairs, `
		SELECT CAST(o.id AS TEXT) AS old_id, n.id AS new_id
		FROM tags o JOIN tags_new n ON n.name = o.name`)
	if err != nil {
		return fmt.Errorf("map tags: %w", err)
	}
	for _, p := range pairs {
		m.tags[p.OldID] = p.NewID
	}
	return nil
}

func migrateTodos(ctx context.Context, tx *sqlx.Tx, m *idRemap) error {
	marked, err := hasColumn(ctx, tx, tableTodos, "is_marked")
	if err != nil {
		return err
	}
	markedExpr := "0"
	if marked {
		markedExpr = "COALESCE(is_marked, 0)"
	}

	var rows []legacyTodo
	err = tx.SelectContext(ctx, &rows, fmt.Sprintf(`
		SELECT CAST(id AS TEXT) AS id, title, description, status,
		       COALESCE(priority, 0) AS priority, %s AS is_marked,
		       CAST(group_id AS TEXT) AS group_id, assignee,
		       start_date, due_date, completed_at, created_at, updated_at
		FROM todos ORDER BY rowid`, markedExpr))
	if err != nil {
		return fmt.Errorf("read todos: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createShadowSQL(tableTodos, todosColumns)); err != nil {
		return fmt.Errorf("create todos shadow: %w", err)
	}

	m.todoOrder = make([]int64, 0, len(rows))
	for _, t := range rows {
		var groupID *int64
		if t.GroupID != nil {
			if id, ok := m.groups[*t.GroupID]; ok {
				groupID = &id
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO todos_new (title, description, status, priority, group_id, assignee,
			                       start_date, due_date, completed_at, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.Title, t.Description, t.Status, max(t.Priority, t.IsMarked), groupID, t.Assignee,
			t.StartDate, t.DueDate, t.CompletedAt, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("copy todo %s: %w", t.ID, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("copy todo %s: %w", t.ID, err)
		}
		m.todos[t.ID] = id
		m.todoOrder = append(m.todoOrder, id)
	}
	return nil
}

func migrateSteps(ctx context.Context, tx *sqlx.Tx, m *idRemap, logger *slog.Logger) error {
	var rows []legacyStep
	err := tx.SelectContext(ctx, &rows, `
		SELECT CAST(todo_id AS TEXT) AS todo_id, title,
		       COALESCE(is_completed, 0) AS is_completed,
		       COALESCE(sort_order, 0) AS sort_order, created_at
		FROM todo_steps ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("read todo_steps: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createShadowSQL(tableTodoSteps, todoStepsColumns)); err != nil {
		return fmt.Errorf("create todo_steps shadow: %w", err)
	}

	var orphans int
	for _, s := range rows {
		todoID, ok := m.todos[s.TodoID]
		if !ok {
			orphans++
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO todo_steps_new (todo_id, title, is_completed, sort_order, created_at)
			VALUES (?, ?, ?, ?, ?)`,
			todoID, s.Title, s.IsCompleted, s.SortOrder, s.CreatedAt)
		if err != nil {
			return fmt.Errorf("copy step: %w", err)
		}
	}
	if orphans > 0 {
		logger.Warn("dropped orphaned rows", "table", tableTodoSteps, "count", orphans)
	}
	return nil
}

func migrateAttachments(ctx context.Context, tx *sqlx.Tx, m *idRemap, logger *slog.Logger) error {
	var rows []legacyAttachment
	err := tx.SelectContext(ctx, &rows, `
		SELECT CAST(todo_id AS TEXT) AS todo_id, name, file_path, file_size, mime_type, created_at
		FROM attachments ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("read attachments: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createShadowSQL(tableAttachments, attachmentsColumns)); err != nil {
		return fmt.Errorf("create attachments shadow: %w", err)
	}

	var orphans int
	for _, a := range rows {
		todoID, ok := m.todos[a.TodoID]
		if !ok {
			orphans++
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO attachments_new (todo_id, name, file_path, file_size, mime_type, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			todoID, a.Name, a.FilePath, a.FileSize, a.MimeType, a.CreatedAt)
		if err != nil {
			return fmt.Errorf("copy attachment: %w", err)
		}
	}
	if orphans > 0 {
		logger.Warn("dropped orphaned rows", "table", tableAttachments, "count", orphans)
	}
	return nil
}

func migrateTodoTags(ctx context.Context, tx *sqlx.Tx, m *idRemap, logger *slog.Logger) error {
	var rows []legacyTodoTag
	err := tx.SelectContext(ctx, &rows, `
		SELECT CAST(todo_id AS TEXT) AS todo_id, CAST(tag_id AS TEXT) AS tag_id
		FROM todo_tags ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("read todo_tags: %w", err)
	}

	if _, err := tx.ExecContext(ctx, createShadowSQL(tableTodoTags, todoTagsColumns)); err != nil {
		return fmt.Errorf("create todo_tags shadow: %w", err)
	}

	var dropped int
	for idx, tt := range rows {
		if idx >= len(m.todoOrder) {
			dropped++
			continue
		}
		tagID, ok := m.tags[tt.TagID]
		if !ok {
			dropped++
			continue
		}
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO todo_tags_new (todo_id, tag_id) VALUES (?, ?)",
			m.todoOrder[idx], tagID)
		if err != nil {
			return fmt.Errorf("copy todo tag: %w", err)
		}
	}
	if dropped > 0 {
		logger.Warn("dropped unmatched rows", "table", tableTodoTags, "count", dropped)
	}
	return nil
}
