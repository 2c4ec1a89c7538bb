package relocate

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtodo/rtodo/internal/config"
	"github.com/rtodo/rtodo/internal/paths"
	"github.com/rtodo/rtodo/internal/sqlite"
	"github.com/rtodo/rtodo/pkg/types"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fileCopier snapshots by copying the database file byte for byte. It never
// writes to the source, so the source tree can be compared exactly.
type fileCopier struct {
	src string
	err error
}

func (f fileCopier) Snapshot(_ context.Context, dst string) error {
	if f.err != nil {
		return f.err
	}
	data, err := os.ReadFile(f.src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}

type memConfig struct {
	path string
	err  error
}

func (m *memConfig) SetDataPath(path string) error {
	if m.err != nil {
		return m.err
	}
	m.path = path
	return nil
}

// tree maps slash-separated relative paths to file contents; directories map
// to "<dir>".
func tree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := make(map[string]string)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(root, path)
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			out[filepath.ToSlash(rel)] = "<dir>"
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

// seedSource writes a closed, valid database and two attachments into dir.
func seedSource(t *testing.T, dir string) {
	t.Helper()
	s, err := sqlite.Open(context.Background(), dir, sqlite.WithLogger(quietLogger))
	require.NoError(t, err)
	_, err = s.Todos().Create(context.Background(), types.NewTodo{Title: "survives the move"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	att := paths.AttachmentsPath(dir)
	require.NoError(t, os.MkdirAll(att, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(att, "a.txt"), []byte("alpha"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(att, "b.png"), []byte("\x89PNG"), 0o644))
}

func newTestRelocator(t *testing.T, source string, db Snapshotter, cfg DataPathSetter, opts ...Option) *Relocator {
	t.Helper()
	r := New(source, db, cfg, append([]Option{WithLogger(quietLogger)}, opts...)...)
	r.tempDir = t.TempDir()
	return r
}

func TestRun_MovesDataAndRemovesOriginal(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")

	s, err := sqlite.Open(ctx, a, sqlite.WithLogger(quietLogger))
	require.NoError(t, err)
	_, err = s.Todos().Create(ctx, types.NewTodo{Title: "survives the move"})
	require.NoError(t, err)
	att := paths.AttachmentsPath(a)
	require.NoError(t, os.MkdirAll(att, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(att, "one.txt"), []byte("1"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(att, "two.txt"), []byte("2"), 0o644))

	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)

	var live *sqlite.Store = s
	switchTo := func(ctx context.Context, dir string) error {
		if err := live.Close(); err != nil {
			return err
		}
		next, err := sqlite.Open(ctx, dir, sqlite.WithLogger(quietLogger))
		if err != nil {
			return err
		}
		live = next
		return nil
	}
	t.Cleanup(func() { live.Close() })

	var events []Status
	r := newTestRelocator(t, a, s, cfg, WithSwitch(switchTo))
	err = r.Run(ctx, Request{NewPath: b}, func(e Event) { events = append(events, e.Status) })
	require.NoError(t, err)

	assert.Equal(t, []Status{
		StatusStarted, StatusCopyingDB, StatusCopyingAttachments, StatusValidating,
		StatusFinalizing, StatusCleaning, StatusCompleted,
	}, events)

	_, err = os.Stat(paths.DatabasePath(b))
	require.NoError(t, err)
	got := tree(t, paths.AttachmentsPath(b))
	assert.Equal(t, map[string]string{"one.txt": "1", "two.txt": "2"}, got)

	_, err = os.Stat(a)
	assert.True(t, os.IsNotExist(err), "original directory removed")

	assert.Equal(t, b, cfg.DataPath())
	assert.Equal(t, b, live.DataDir())

	todos, err := live.Todos().List(ctx, types.TodoFilter{})
	require.NoError(t, err)
	require.Len(t, todos, 1)
	assert.Equal(t, "survives the move", todos[0].Title)

	_, err = os.Stat(r.stagingDir())
	assert.True(t, os.IsNotExist(err), "staging removed")
}

func TestRun_KeepOriginal(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	seedSource(t, a)
	before := tree(t, a)

	var last Event
	cfg := &memConfig{}
	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, cfg)
	require.NoError(t, r.Run(context.Background(), Request{NewPath: b, KeepOriginal: true},
		func(e Event) { last = e }))

	assert.Equal(t, before, tree(t, a))
	assert.Equal(t, before, tree(t, b))
	assert.Equal(t, StatusCompleted, last.Status)
	assert.Contains(t, last.Message, "kept")
	assert.Equal(t, b, cfg.path)
}

func TestRun_CrossDeviceFallback(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	seedSource(t, a)

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})

	var staged map[string]string
	r.rename = func(oldpath, newpath string) error {
		staged = tree(t, oldpath)
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errCrossDevice}
	}

	require.NoError(t, r.Run(context.Background(), Request{NewPath: b, KeepOriginal: true}, nil))

	require.NotEmpty(t, staged)
	assert.Equal(t, staged, tree(t, b))
	_, err := os.Stat(r.stagingDir())
	assert.True(t, os.IsNotExist(err), "staging removed after copy")
}

func TestRun_RenameFailureKeepsStaging(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	seedSource(t, a)
	before := tree(t, a)

	cfg := &memConfig{}
	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, cfg)
	r.rename = func(oldpath, newpath string) error {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: os.ErrPermission}
	}

	err := r.Run(context.Background(), Request{NewPath: filepath.Join(base, "B")}, nil)
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StatusFinalizing, serr.Stage)
	assert.True(t, serr.StagingKept)

	_, statErr := os.Stat(paths.DatabasePath(r.stagingDir()))
	assert.NoError(t, statErr, "staged copy left for recovery")
	assert.Equal(t, before, tree(t, a))
	assert.Empty(t, cfg.path, "config untouched")
}

func TestRun_FailureLeavesSourceUntouched(t *testing.T) {
	injected := errors.New("injected")

	cases := []struct {
		stage Status
		setup func(r *Relocator, source string)
	}{
		{StatusCopyingDB, func(r *Relocator, source string) {
			r.db = fileCopier{err: injected}
		}},
		{StatusCopyingAttachments, func(r *Relocator, source string) {
			r.copyTree = func(src, dst string) error {
				// Leave a partial copy behind before failing.
				if err := os.MkdirAll(dst, 0o755); err != nil {
					return err
				}
				return injected
			}
		}},
		{StatusValidating, func(r *Relocator, source string) {
			r.validate = func(context.Context, string) error { return injected }
		}},
	}

	for _, tc := range cases {
		t.Run(string(tc.stage), func(t *testing.T) {
			base := t.TempDir()
			a := filepath.Join(base, "A")
			b := filepath.Join(base, "B")
			seedSource(t, a)
			before := tree(t, a)

			cfg := &memConfig{}
			r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, cfg)
			tc.setup(r, a)

			err := r.Run(context.Background(), Request{NewPath: b}, nil)
			var serr *StageError
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, tc.stage, serr.Stage)
			assert.False(t, serr.StagingKept)
			assert.ErrorIs(t, err, injected)

			assert.Equal(t, before, tree(t, a))
			_, statErr := os.Stat(b)
			assert.True(t, os.IsNotExist(statErr), "destination not created")
			_, statErr = os.Stat(r.stagingDir())
			assert.True(t, os.IsNotExist(statErr), "staging removed")
			assert.Empty(t, cfg.path)
		})
	}
}

func TestRun_ValidationRejectsCorruptCopy(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	seedSource(t, a)

	r := newTestRelocator(t, a, snapshotFunc(func(dst string) error {
		return os.WriteFile(dst, []byte("this is not a database, only some text long enough to look like one"), 0o644)
	}), &memConfig{})

	err := r.Run(context.Background(), Request{NewPath: filepath.Join(base, "B")}, nil)
	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StatusValidating, serr.Stage)
}

type snapshotFunc func(dst string) error

func (f snapshotFunc) Snapshot(_ context.Context, dst string) error { return f(dst) }

func TestRun_DestinationWithDataIsBackedUp(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	seedSource(t, a)

	require.NoError(t, os.MkdirAll(b, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b, "notes.md"), []byte("mine"), 0o644))
	require.NoError(t, os.MkdirAll(b+".bak", 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b+".bak", "stale"), []byte("old"), 0o644))

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})
	require.NoError(t, r.Run(context.Background(), Request{NewPath: b, KeepOriginal: true}, nil))

	assert.Equal(t, map[string]string{"notes.md": "mine"}, tree(t, b+".bak"))
	_, err := os.Stat(paths.DatabasePath(b))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(b, "notes.md"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_CleaningRemovesBackup(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	seedSource(t, a)
	require.NoError(t, os.MkdirAll(b, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b, "notes.md"), []byte("mine"), 0o644))
	// Unrelated user file in the source survives cleaning.
	require.NoError(t, os.WriteFile(filepath.Join(a, "README"), []byte("keep"), 0o644))

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})
	require.NoError(t, r.Run(context.Background(), Request{NewPath: b}, nil))

	_, err := os.Stat(b + ".bak")
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, map[string]string{"README": "keep"}, tree(t, a))
}

func TestRun_HousekeepingOnlyDestinationIsReplaced(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	seedSource(t, a)
	require.NoError(t, os.MkdirAll(filepath.Join(b, ".Trashes"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b, ".DS_Store"), []byte{0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(b, "Thumbs.db"), []byte{0}, 0o644))

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})
	require.NoError(t, r.Run(context.Background(), Request{NewPath: b, KeepOriginal: true}, nil))

	_, err := os.Stat(b + ".bak")
	assert.True(t, os.IsNotExist(err), "no backup for housekeeping files")
	_, err = os.Stat(filepath.Join(b, ".DS_Store"))
	assert.True(t, os.IsNotExist(err))
}

func TestRun_RejectsBadDestinations(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "data")
	seedSource(t, a)

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})
	ctx := context.Background()

	assert.ErrorIs(t, r.Run(ctx, Request{NewPath: a}, nil), ErrSamePath)
	assert.ErrorIs(t, r.Run(ctx, Request{NewPath: a + string(filepath.Separator)}, nil), ErrSamePath)
	assert.ErrorIs(t, r.Run(ctx, Request{NewPath: base}, nil), ErrNestedPath)
	assert.ErrorIs(t, r.Run(ctx, Request{NewPath: "  "}, nil), ErrEmptyPath)
}

func TestRun_RejectsDestinationInsideSource(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	seedSource(t, a)
	before := tree(t, a)

	cfg := &memConfig{}
	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, cfg)
	ctx := context.Background()

	for _, dest := range []string{
		filepath.Join(paths.AttachmentsPath(a), "moved"),
		filepath.Join(a, "sub"),
	} {
		err := r.Run(ctx, Request{NewPath: dest}, nil)
		require.ErrorIs(t, err, ErrNestedPath, dest)
		_, err = os.Stat(dest)
		assert.True(t, os.IsNotExist(err), "destination %s must not be created", dest)
	}

	assert.Equal(t, before, tree(t, a))
	assert.Empty(t, cfg.path)
}

func TestRun_SaveFailureReportsBackup(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	b := filepath.Join(base, "B")
	seedSource(t, a)
	before := tree(t, a)

	require.NoError(t, os.MkdirAll(b, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(b, "notes.md"), []byte("mine"), 0o644))

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{err: errors.New("read-only config")})
	err := r.Run(context.Background(), Request{NewPath: b}, nil)
	require.Error(t, err)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StatusFinalizing, serr.Stage)
	assert.Equal(t, b+".bak", serr.Backup)
	assert.Contains(t, err.Error(), b+".bak")

	assert.Equal(t, map[string]string{"notes.md": "mine"}, tree(t, b+".bak"))
	assert.Equal(t, before, tree(t, a), "source is not cleaned when the path was not saved")
}

func TestRun_MissingDatabase(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	require.NoError(t, os.MkdirAll(a, 0o755))

	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})
	err := r.Run(context.Background(), Request{NewPath: filepath.Join(base, "B")}, nil)
	assert.ErrorIs(t, err, ErrSourceMissing)

	var serr *StageError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, StatusCopyingDB, serr.Stage)
}

func TestRun_NoAttachmentsSkipsStage(t *testing.T) {
	base := t.TempDir()
	a := filepath.Join(base, "A")
	s, err := sqlite.Open(context.Background(), a, sqlite.WithLogger(quietLogger))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	var events []Status
	r := newTestRelocator(t, a, fileCopier{src: paths.DatabasePath(a)}, &memConfig{})
	require.NoError(t, r.Run(context.Background(), Request{NewPath: filepath.Join(base, "B"), KeepOriginal: true},
		func(e Event) { events = append(events, e.Status) }))

	assert.NotContains(t, events, StatusCopyingAttachments)
	assert.NotContains(t, events, StatusCleaning)
}

func TestCopyTree(t *testing.T) {
	src := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(src, "x", "y"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, "x", "y", "deep.txt"), []byte("deep"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(src, "top.txt"), []byte("top"), 0o644))

	dst := filepath.Join(t.TempDir(), "copy")
	require.NoError(t, copyTree(src, dst))
	assert.Equal(t, tree(t, src), tree(t, dst))
}
