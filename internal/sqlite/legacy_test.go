package sqlite

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/rtodo/rtodo/internal/paths"
)

// legacySchema is the schema written by releases that used text ids and a
// text status column.
var legacySchema = []string{
	`CREATE TABLE task_groups (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		parent_id TEXT,
		icon TEXT,
		color TEXT,
		sort_order INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (parent_id) REFERENCES task_groups(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX idx_task_groups_parent ON task_groups(parent_id)`,
	`CREATE TABLE tags (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		color TEXT NOT NULL DEFAULT '#409EFF',
		created_at INTEGER NOT NULL
	)`,
	`CREATE TABLE todos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT,
		status TEXT NOT NULL DEFAULT 'todo',
		priority INTEGER DEFAULT 0,
		is_marked INTEGER DEFAULT 0,
		group_id TEXT,
		assignee TEXT,
		start_date INTEGER,
		due_date INTEGER,
		completed_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		FOREIGN KEY (group_id) REFERENCES task_groups(id) ON DELETE SET NULL
	)`,
	`CREATE INDEX idx_todos_group ON todos(group_id)`,
	`CREATE INDEX idx_todos_status ON todos(status)`,
	`CREATE INDEX idx_todos_due_date ON todos(due_date)`,
	`CREATE TABLE todo_tags (
		todo_id TEXT NOT NULL,
		tag_id TEXT NOT NULL,
		PRIMARY KEY (todo_id, tag_id),
		FOREIGN KEY (todo_id) REFERENCES todos(id) ON DELETE CASCADE,
		FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX idx_todo_tags_todo ON todo_tags(todo_id)`,
	`CREATE INDEX idx_todo_tags_tag ON todo_tags(tag_id)`,
	`CREATE TABLE todo_steps (
		id TEXT PRIMARY KEY,
		todo_id TEXT NOT NULL,
		title TEXT NOT NULL,
		is_completed INTEGER DEFAULT 0,
		sort_order INTEGER DEFAULT 0,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (todo_id) REFERENCES todos(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX idx_todo_steps_todo ON todo_steps(todo_id)`,
	`CREATE TABLE attachments (
		id TEXT PRIMARY KEY,
		todo_id TEXT NOT NULL,
		name TEXT NOT NULL,
		file_path TEXT NOT NULL,
		file_size INTEGER,
		mime_type TEXT,
		created_at INTEGER NOT NULL,
		FOREIGN KEY (todo_id) REFERENCES todos(id) ON DELETE CASCADE
	)`,
	`CREATE INDEX idx_attachments_todo ON attachments(todo_id)`,
}

// legacyDB writes a legacy database into dir and returns a handle for
// seeding it. Foreign keys are off so orphaned rows can be inserted.
type legacyDB struct {
	t  *testing.T
	db *sqlx.DB
}

func newLegacyDB(t *testing.T, dir string) *legacyDB {
	t.Helper()
	db := openRaw(t, dir)
	db.MustExec("PRAGMA foreign_keys = OFF")
	for _, ddl := range legacySchema {
		db.MustExec(ddl)
	}
	return &legacyDB{t: t, db: db}
}

// openRaw opens the database file in dir without migrating it.
func openRaw(t *testing.T, dir string) *sqlx.DB {
	t.Helper()
	db, err := sqlx.Open(driverName, paths.DatabasePath(dir))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	return db
}

func (l *legacyDB) close() {
	require.NoError(l.t, l.db.Close())
}

func (l *legacyDB) group(id, name string, parent any) {
	l.db.MustExec(`INSERT INTO task_groups (id, name, parent_id, icon, color, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, '📁', '#409EFF', 0, 1000, 1000)`, id, name, parent)
}

func (l *legacyDB) tag(id, name string) {
	l.db.MustExec(`INSERT INTO tags (id, name, color, created_at) VALUES (?, ?, '#F56C6C', 1000)`, id, name)
}

func (l *legacyDB) todo(id, title, status string, group any) {
	l.db.MustExec(`INSERT INTO todos (id, title, status, priority, is_marked, group_id, created_at, updated_at)
		VALUES (?, ?, ?, 0, 0, ?, 1000, 1000)`, id, title, status, group)
}

func (l *legacyDB) step(todoID, title string) {
	l.db.MustExec(`INSERT INTO todo_steps (id, todo_id, title, is_completed, sort_order, created_at)
		VALUES (?, ?, ?, 0, 0, 1000)`, uuid.NewString(), todoID, title)
}

func (l *legacyDB) attachment(todoID, name string) {
	l.db.MustExec(`INSERT INTO attachments (id, todo_id, name, file_path, file_size, mime_type, created_at)
		VALUES (?, ?, ?, ?, 3, 'text/plain', 1000)`, uuid.NewString(), todoID, name, "attachments/"+uuid.NewString()+".txt")
}

func (l *legacyDB) link(todoID, tagID string) {
	l.db.MustExec(`INSERT INTO todo_tags (todo_id, tag_id) VALUES (?, ?)`, todoID, tagID)
}

// openStore opens the store in dir and closes it when the test ends.
func openStore(t *testing.T, dir string, opts ...Option) *Store {
	t.Helper()
	s, err := Open(context.Background(), dir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// dumpDB returns the schema and every row of every table, for comparing two
// states of the same file.
func dumpDB(t *testing.T, db *sqlx.DB) map[string][]map[string]any {
	t.Helper()
	ctx := context.Background()
	out := make(map[string][]map[string]any)

	var schema []struct {
		Name string `db:"name"`
		SQL  string `db:"sql"`
	}
	require.NoError(t, db.SelectContext(ctx, &schema,
		"SELECT name, COALESCE(sql, '') AS sql FROM sqlite_master WHERE name NOT LIKE 'sqlite_%' ORDER BY name"))
	for _, s := range schema {
		out["schema"] = append(out["schema"], map[string]any{"name": s.Name, "sql": s.SQL})
	}

	for _, def := range schemaTables {
		rows, err := db.QueryxContext(ctx, "SELECT * FROM "+def.name+" ORDER BY rowid")
		require.NoError(t, err)
		for rows.Next() {
			row := make(map[string]any)
			require.NoError(t, rows.MapScan(row))
			out[def.name] = append(out[def.name], row)
		}
		require.NoError(t, rows.Err())
		rows.Close()
	}
	return out
}
