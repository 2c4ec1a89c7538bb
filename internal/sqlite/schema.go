// Package sqlite implements the storage engine for rtodo: the SQLite file,
// its pragmas, the schema migration engine, and the per-table repositories.
package sqlite

import "fmt"

// Column definitions for each table. The same body is used for the live
// table and for the shadow tables built during migrations.
const (
	taskGroupsColumns = `(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    parent_id INTEGER,
    icon TEXT,
    color TEXT,
    sort_order INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (parent_id) REFERENCES task_groups(id)
)`

	tagsColumns = `(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL UNIQUE,
    color TEXT NOT NULL DEFAULT '#409EFF',
    created_at INTEGER NOT NULL
)`

	todosColumns = `(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    title TEXT NOT NULL,
    description TEXT,
    status INTEGER NOT NULL DEFAULT 0,
    priority INTEGER DEFAULT 0,
    group_id INTEGER,
    assignee TEXT,
    start_date INTEGER,
    due_date INTEGER,
    completed_at INTEGER,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL,
    FOREIGN KEY (group_id) REFERENCES task_groups(id) ON DELETE SET NULL
)`

	todoStepsColumns = `(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    todo_id INTEGER NOT NULL,
    title TEXT NOT NULL,
    is_completed INTEGER DEFAULT 0,
    sort_order INTEGER DEFAULT 0,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (todo_id) REFERENCES todos(id) ON DELETE CASCADE
)`

	attachmentsColumns = `(
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    todo_id INTEGER NOT NULL,
    name TEXT NOT NULL,
    file_path TEXT NOT NULL,
    file_size INTEGER,
    mime_type TEXT,
    created_at INTEGER NOT NULL,
    FOREIGN KEY (todo_id) REFERENCES todos(id) ON DELETE CASCADE
)`

	todoTagsColumns = `(
    todo_id INTEGER NOT NULL,
    tag_id INTEGER NOT NULL,
    PRIMARY KEY (todo_id, tag_id),
    FOREIGN KEY (todo_id) REFERENCES todos(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
)`
)

// Table names.
const (
	tableTaskGroups  = "task_groups"
	tableTags        = "tags"
	tableTodos       = "todos"
	tableTodoSteps   = "todo_steps"
	tableAttachments = "attachments"
	tableTodoTags    = "todo_tags"
)

// tableDef pairs a table name with its column body.
type tableDef struct {
	name    string
	columns string
}

// schemaTables lists all tables in dependency order.
var schemaTables = []tableDef{
	{tableTaskGroups, taskGroupsColumns},
	{tableTags, tagsColumns},
	{tableTodos, todosColumns},
	{tableTodoSteps, todoStepsColumns},
	{tableAttachments, attachmentsColumns},
	{tableTodoTags, todoTagsColumns},
}

// Index DDL for common queries.
const (
	idxTaskGroupsParent = `CREATE INDEX IF NOT EXISTS idx_task_groups_parent ON task_groups(parent_id)`
	idxTodosGroup       = `CREATE INDEX IF NOT EXISTS idx_todos_group ON todos(group_id)`
	idxTodosStatus      = `CREATE INDEX IF NOT EXISTS idx_todos_status ON todos(status)`
	idxTodosDueDate     = `CREATE INDEX IF NOT EXISTS idx_todos_due_date ON todos(due_date)`
	idxTodoTagsTodo     = `CREATE INDEX IF NOT EXISTS idx_todo_tags_todo ON todo_tags(todo_id)`
	idxTodoTagsTag      = `CREATE INDEX IF NOT EXISTS idx_todo_tags_tag ON todo_tags(tag_id)`
	idxTodoStepsTodo    = `CREATE INDEX IF NOT EXISTS idx_todo_steps_todo ON todo_steps(todo_id)`
	idxAttachmentsTodo  = `CREATE INDEX IF NOT EXISTS idx_attachments_todo ON attachments(todo_id)`
)

// indexDDL lists every index of the current schema.
var indexDDL = []string{
	idxTaskGroupsParent,
	idxTodosGroup,
	idxTodosStatus,
	idxTodosDueDate,
	idxTodoTagsTodo,
	idxTodoTagsTag,
	idxTodoStepsTodo,
	idxAttachmentsTodo,
}

// todosIndexDDL lists the indexes rebuilt after the todos table is replaced.
var todosIndexDDL = []string{
	idxTodosGroup,
	idxTodosStatus,
	idxTodosDueDate,
}

// createTableSQL returns CREATE TABLE IF NOT EXISTS for a live table.
func createTableSQL(def tableDef) string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s %s", def.name, def.columns)
}

// createShadowSQL returns CREATE TABLE for the shadow of a table. The shadow
// is named <table>_new and is renamed over the original once populated.
func createShadowSQL(name, columns string) string {
	return fmt.Sprintf("CREATE TABLE %s %s", shadowName(name), columns)
}

func shadowName(table string) string {
	return table + "_new"
}
