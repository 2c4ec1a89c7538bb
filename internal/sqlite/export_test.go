package sqlite

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtodo/rtodo/pkg/types"
)

func TestExport(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tag, err := s.Tags().Create(ctx, "home", "")
	require.NoError(t, err)
	todo, err := s.Todos().Create(ctx, types.NewTodo{Title: "sweep", TagIDs: []int64{tag.ID}})
	require.NoError(t, err)
	_, err = s.Steps().Create(ctx, todo.ID, "kitchen")
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "export")
	counts, err := s.Export(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		"task_groups": 0, "tags": 1, "todos": 1,
		"todo_steps": 1, "attachments": 0, "todo_tags": 1,
	}, counts)

	for _, table := range ExportTables() {
		_, err := os.Stat(filepath.Join(dir, ExportFile(table)))
		assert.NoError(t, err, table)
	}

	recs, _, err := readJSONL(filepath.Join(dir, ExportFile("todos")))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	var row map[string]any
	require.NoError(t, json.Unmarshal(recs[0], &row))
	assert.Equal(t, "sweep", row["title"])
	assert.EqualValues(t, todo.ID, row["id"])
	assert.EqualValues(t, 0, row["status"])

	recs, _, err = readJSONL(filepath.Join(dir, ExportFile("todo_tags")))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.JSONEq(t, `{"todo_id": 1, "tag_id": 1}`, string(recs[0]))
}

func TestReadJSONL_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{\"a\":1}\n\nnot json\n{\"b\":2}\n"), 0o644))

	recs, skipped, err := readJSONL(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	require.Len(t, recs, 2)
	assert.JSONEq(t, `{"a":1}`, string(recs[0]))
	assert.JSONEq(t, `{"b":2}`, string(recs[1]))
}

func TestVerifyExport_DetectsDamage(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	for _, title := range []string{"one", "two"} {
		_, err := s.Todos().Create(ctx, types.NewTodo{Title: title})
		require.NoError(t, err)
	}

	dir := t.TempDir()
	counts, err := s.Export(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, verifyExport(dir, counts))

	got, skipped, err := ExportCounts(dir)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, counts, got)

	todos := filepath.Join(dir, ExportFile("todos"))
	data, err := os.ReadFile(todos)
	require.NoError(t, err)

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"malformed line", string(data) + "{\"id\": 3, \"title\n", "malformed"},
		{"missing record", strings.SplitAfter(string(data), "\n")[0], "wrote 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, os.WriteFile(todos, []byte(tt.content), 0o644))
			err := verifyExport(dir, counts)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	require.NoError(t, os.Remove(todos))
	_, _, err = ExportCounts(dir)
	assert.Error(t, err)
}

func TestWriteJSONL_Replaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	require.NoError(t, writeJSONL(path, []json.RawMessage{json.RawMessage(`{"n":1}`)}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\"n\":1}\n", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file removed")
}
