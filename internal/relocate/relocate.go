// Package relocate moves a data directory to a new location while the
// application keeps running against it.
//
// The database is copied with an online snapshot, attachments are copied
// alongside it into a staging directory, the copy is validated, and only then
// is the staging directory moved into place. Any failure before the
// destination is touched leaves the source as it was and removes the staging
// directory.
package relocate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/rtodo/rtodo/internal/paths"
	"github.com/rtodo/rtodo/internal/sqlite"
)

// Status names a relocation stage in progress events.
type Status string

// Stages in the order they run. StatusCopyingAttachments is skipped when the
// source has no attachments directory and StatusCleaning when the original is
// kept.
const (
	StatusStarted            Status = "started"
	StatusCopyingDB          Status = "copying_db"
	StatusCopyingAttachments Status = "copying_attachments"
	StatusValidating         Status = "validating"
	StatusFinalizing         Status = "finalizing"
	StatusCleaning           Status = "cleaning"
	StatusCompleted          Status = "completed"
)

// Event is one progress notification.
type Event struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
}

// ProgressFunc receives progress events. It must not block for long.
type ProgressFunc func(Event)

// Request describes a relocation.
type Request struct {
	NewPath      string
	KeepOriginal bool
}

// Errors returned before the database is copied.
var (
	ErrSamePath      = errors.New("new data path is the current data path")
	ErrNestedPath    = errors.New("new data path and current data path are nested")
	ErrEmptyPath     = errors.New("new data path is empty")
	ErrSourceMissing = errors.New("database file does not exist")
)

// StageError reports the stage a relocation failed in. StagingKept is true
// when the staging directory was left in place because the destination had
// already been cleared; Staging then holds the only complete copy. Backup
// names the directory the destination's previous contents were moved to, if
// any; it is not restored on failure.
type StageError struct {
	Stage       Status
	Staging     string
	StagingKept bool
	Backup      string
	Err         error
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("relocation failed while %s", e.Stage)
	if e.StagingKept {
		msg += fmt.Sprintf(" (staged data kept at %s)", e.Staging)
	}
	if e.Backup != "" {
		msg += fmt.Sprintf(" (previous destination contents at %s)", e.Backup)
	}
	return fmt.Sprintf("%s: %v", msg, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Snapshotter writes a consistent copy of the live database to dst.
type Snapshotter interface {
	Snapshot(ctx context.Context, dst string) error
}

// DataPathSetter persists the configured data directory.
type DataPathSetter interface {
	SetDataPath(path string) error
}

// housekeeping lists OS-generated entries that do not count as user data when
// deciding whether an existing destination can be deleted.
var housekeeping = map[string]bool{
	"desktop.ini":               true,
	"Thumbs.db":                 true,
	".DS_Store":                 true,
	".Spotlight-V100":           true,
	".Trashes":                  true,
	"$RECYCLE.BIN":              true,
	"System Volume Information": true,
}

// Relocator runs relocations of one source data directory.
type Relocator struct {
	source string
	db     Snapshotter
	config DataPathSetter
	logger *slog.Logger

	// switchTo is called after the configuration points at the new
	// directory and before the original is cleaned.
	switchTo func(ctx context.Context, dir string) error

	tempDir  string
	rename   func(oldpath, newpath string) error
	copyTree func(src, dst string) error
	validate func(ctx context.Context, path string) error
}

// Option configures a Relocator.
type Option func(*Relocator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relocator) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSwitch sets the function that moves live handles to the new
// directory. It must release every file in the source directory.
func WithSwitch(fn func(ctx context.Context, dir string) error) Option {
	return func(r *Relocator) {
		r.switchTo = fn
	}
}

// New returns a Relocator for the data directory source, whose database is
// reachable through db.
func New(source string, db Snapshotter, config DataPathSetter, opts ...Option) *Relocator {
	r := &Relocator{
		source:   source,
		db:       db,
		config:   config,
		logger:   slog.Default(),
		tempDir:  os.TempDir(),
		rename:   os.Rename,
		copyTree: copyTree,
		validate: sqlite.ValidateFile,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// stagingDir is unique to the process so that concurrent processes never
// share one.
func (r *Relocator) stagingDir() string {
	return filepath.Join(r.tempDir, fmt.Sprintf("rtodo-relocate-%d", os.Getpid()))
}

// Run relocates the data directory to req.NewPath. Progress is reported to
// progress, which may be nil. The context is passed to database calls; a
// started relocation is not cancelled by it.
func (r *Relocator) Run(ctx context.Context, req Request, progress ProgressFunc) error {
	emit := func(s Status, msg string) {
		r.logger.Info("relocation progress", "status", string(s), "message", msg)
		if progress != nil {
			progress(Event{Status: s, Message: msg})
		}
	}

	emit(StatusStarted, "Starting data relocation")

	if strings.TrimSpace(req.NewPath) == "" {
		return ErrEmptyPath
	}
	dest, err := filepath.Abs(req.NewPath)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", req.NewPath, err)
	}
	source, err := filepath.Abs(r.source)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", r.source, err)
	}
	if paths.SamePath(dest, source) {
		return fmt.Errorf("%w: %s", ErrSamePath, dest)
	}
	// Cleaning removes source paths that would hold a destination placed
	// inside the source, and a source inside the destination would be
	// moved aside with it.
	if within(source, dest) || within(dest, source) {
		return fmt.Errorf("%w: %s", ErrNestedPath, dest)
	}

	staging := r.stagingDir()
	fail := func(stage Status, err error) error {
		if rmErr := os.RemoveAll(staging); rmErr != nil {
			r.logger.Warn("remove staging directory", "path", staging, "error", rmErr)
		}
		r.logger.Error("relocation aborted", "stage", string(stage), "error", err)
		return &StageError{Stage: stage, Staging: staging, Err: err}
	}

	if err := os.RemoveAll(staging); err != nil {
		return &StageError{Stage: StatusStarted, Staging: staging, Err: fmt.Errorf("remove stale staging: %w", err)}
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return fail(StatusStarted, fmt.Errorf("create staging: %w", err))
	}

	emit(StatusCopyingDB, "Copying database")
	dbSource := paths.DatabasePath(source)
	if _, err := os.Stat(dbSource); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			err = fmt.Errorf("%w: %s", ErrSourceMissing, dbSource)
		}
		return fail(StatusCopyingDB, err)
	}
	stagedDB := paths.DatabasePath(staging)
	if err := r.db.Snapshot(ctx, stagedDB); err != nil {
		return fail(StatusCopyingDB, err)
	}

	attSource := paths.AttachmentsPath(source)
	if info, err := os.Stat(attSource); err == nil && info.IsDir() {
		emit(StatusCopyingAttachments, "Copying attachments")
		if err := r.copyTree(attSource, paths.AttachmentsPath(staging)); err != nil {
			return fail(StatusCopyingAttachments, err)
		}
	}

	emit(StatusValidating, "Validating copied data")
	if err := r.validate(ctx, stagedDB); err != nil {
		return fail(StatusValidating, err)
	}

	emit(StatusFinalizing, "Finalizing relocation")
	backup, err := r.clearDestination(dest)
	if err != nil {
		return fail(StatusFinalizing, err)
	}

	// From here on the destination may be gone and staging holds the only
	// complete copy, so it is kept on failure.
	if err := r.moveDir(staging, dest); err != nil {
		r.logger.Error("relocation aborted; staged data kept", "staging", staging, "error", err)
		return &StageError{Stage: StatusFinalizing, Staging: staging, StagingKept: true, Backup: backup, Err: err}
	}

	if err := r.config.SetDataPath(dest); err != nil {
		return &StageError{Stage: StatusFinalizing, Backup: backup, Err: fmt.Errorf("save data path: %w", err)}
	}
	if r.switchTo != nil {
		if err := r.switchTo(ctx, dest); err != nil {
			return &StageError{Stage: StatusFinalizing, Backup: backup, Err: fmt.Errorf("switch to new data directory: %w", err)}
		}
	}

	if !req.KeepOriginal {
		emit(StatusCleaning, "Removing original data")
		r.cleanOriginal(source, backup)
	}

	if req.KeepOriginal {
		emit(StatusCompleted, "Relocation complete; original data kept")
	} else {
		emit(StatusCompleted, "Relocation complete; original data removed")
	}
	return nil
}

// clearDestination makes dest free for the move. A destination holding only
// housekeeping files is deleted; anything else is renamed to dest.bak,
// replacing a previous backup. It returns the backup path, if one was made.
func (r *Relocator) clearDestination(dest string) (string, error) {
	entries, err := os.ReadDir(dest)
	if errors.Is(err, os.ErrNotExist) {
		return "", os.MkdirAll(filepath.Dir(dest), 0o755)
	}
	if err != nil {
		return "", fmt.Errorf("read destination: %w", err)
	}

	if onlyHousekeeping(entries) {
		r.logger.Info("removing empty destination", "path", dest)
		if err := os.RemoveAll(dest); err != nil {
			return "", fmt.Errorf("remove destination: %w", err)
		}
		return "", nil
	}

	backup := dest + ".bak"
	if err := os.RemoveAll(backup); err != nil {
		return "", fmt.Errorf("remove stale backup: %w", err)
	}
	r.logger.Info("destination holds data, moving it aside", "path", dest, "backup", backup)
	if err := r.rename(dest, backup); err != nil {
		return "", fmt.Errorf("back up destination: %w", err)
	}
	return backup, nil
}

func onlyHousekeeping(entries []os.DirEntry) bool {
	for _, e := range entries {
		if !housekeeping[e.Name()] {
			return false
		}
	}
	return true
}

// moveDir renames src to dst, falling back to copy and delete when the two
// are on different devices.
func (r *Relocator) moveDir(src, dst string) error {
	err := r.rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDevice(err) {
		return fmt.Errorf("move staging into place: %w", err)
	}

	r.logger.Info("cross-device move, copying instead", "from", src, "to", dst)
	if err := r.copyTree(src, dst); err != nil {
		return fmt.Errorf("copy staging into place: %w", err)
	}
	if err := os.RemoveAll(src); err != nil {
		r.logger.Warn("remove staging after copy", "path", src, "error", err)
	}
	return nil
}

// cleanOriginal removes the original data and the destination backup. It is
// best effort: failures are logged and never fail the relocation.
func (r *Relocator) cleanOriginal(source, backup string) {
	remove := func(path string) {
		if err := os.RemoveAll(path); err != nil {
			r.logger.Warn("cleanup failed", "path", path, "error", err)
		}
	}

	if backup != "" {
		remove(backup)
	}
	db := paths.DatabasePath(source)
	for _, p := range []string{db, db + "-wal", db + "-shm", paths.AttachmentsPath(source)} {
		remove(p)
	}

	// Only an emptied directory goes; anything the user kept there stays.
	if entries, err := os.ReadDir(source); err == nil && len(entries) == 0 {
		remove(source)
	}
}

// within reports whether child is inside parent.
func within(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// isCrossDevice reports whether a rename failed because source and target
// are on different devices or volumes.
func isCrossDevice(err error) bool {
	return errors.Is(err, errCrossDevice)
}
