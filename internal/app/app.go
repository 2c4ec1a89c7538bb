// Package app sequences startup (load config, resolve the data directory,
// open and migrate the store) and owns the live store so a relocation can
// swap it for one opened in the new directory.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/rtodo/rtodo/internal/attachments"
	"github.com/rtodo/rtodo/internal/config"
	"github.com/rtodo/rtodo/internal/paths"
	"github.com/rtodo/rtodo/internal/relocate"
	"github.com/rtodo/rtodo/internal/sqlite"
	"github.com/rtodo/rtodo/pkg/types"
)

// Options configures Open.
type Options struct {
	// ConfigDir overrides the configuration directory. Empty means
	// RTODO_CONFIG_DIR or the platform default.
	ConfigDir string
	// DataDir overrides the configured data directory for this run only.
	DataDir string
	Logger  *slog.Logger
}

// App is an opened application: configuration plus the store for the
// current data directory.
type App struct {
	// relocating serializes relocations; mu guards store.
	relocating sync.Mutex
	mu         sync.RWMutex

	config *config.Store
	store  *sqlite.Store
	logger *slog.Logger
}

// Open loads the configuration and opens the store. A failed migration is
// fatal and returned as is, so callers can inspect *sqlite.MigrationError.
func Open(ctx context.Context, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	configDir, err := paths.ResolveConfigDir(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("resolve config dir: %w", err)
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}

	dataDir, err := paths.ResolveDataDir(opts.DataDir, cfg.DataPath())
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	logger.Debug("opening data directory", "config", cfg.Path(), "data", dataDir)

	store, err := sqlite.Open(ctx, dataDir, sqlite.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	return &App{config: cfg, store: store, logger: logger}, nil
}

// Config returns the configuration store.
func (a *App) Config() *config.Store {
	return a.config
}

// Store returns the store for the current data directory. The returned
// store is closed by a relocation; callers should not hold it across one.
func (a *App) Store() *sqlite.Store {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.store
}

// DataDir returns the current data directory.
func (a *App) DataDir() string {
	return a.Store().DataDir()
}

// Attachments returns the attachment directory of the current data directory.
func (a *App) Attachments() attachments.Dir {
	return attachments.Dir{Root: a.DataDir()}
}

// Close closes the store.
func (a *App) Close() error {
	return a.Store().Close()
}

// Relocate moves the data directory to req.NewPath and switches the app to
// it. Concurrent calls run one at a time.
func (a *App) Relocate(ctx context.Context, req relocate.Request, progress relocate.ProgressFunc) error {
	a.relocating.Lock()
	defer a.relocating.Unlock()

	r := relocate.New(a.DataDir(), a.Store(), a.config,
		relocate.WithLogger(a.logger),
		relocate.WithSwitch(a.switchTo),
	)
	return r.Run(ctx, req, progress)
}

// switchTo opens dir and replaces the current store with it. If dir cannot be
// opened the current store stays open and in use.
func (a *App) switchTo(ctx context.Context, dir string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	// Open first so a failure leaves the current store in service.
	next, err := sqlite.Open(ctx, dir, sqlite.WithLogger(a.logger))
	if err != nil {
		return fmt.Errorf("open relocated store: %w", err)
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close previous store", "path", a.store.DataDir(), "error", err)
	}
	a.store = next
	a.logger.Info("switched data directory", "path", dir)
	return nil
}

// AddAttachment copies src into the attachments directory and records it on
// the todo. The copied file is removed again if the row cannot be written.
func (a *App) AddAttachment(ctx context.Context, todoID int64, src string) (*types.Attachment, error) {
	store := a.Store()
	if _, err := store.Todos().Get(ctx, todoID); err != nil {
		return nil, err
	}

	dir := attachments.Dir{Root: store.DataDir()}
	name := filepath.Base(src)
	stored, err := dir.Save(src, name)
	if err != nil {
		return nil, err
	}

	att, err := store.Attachments().Create(ctx, types.Attachment{
		TodoID:   todoID,
		Name:     name,
		FilePath: stored.RelPath,
		FileSize: stored.Size,
		MimeType: stored.MimeType,
	})
	if err != nil {
		if rmErr := dir.Remove(stored.RelPath); rmErr != nil {
			a.logger.Warn("remove orphaned attachment file", "path", stored.RelPath, "error", rmErr)
		}
		return nil, err
	}
	return att, nil
}

// RemoveAttachment deletes the attachment row and then its file. A file that
// cannot be removed is logged and left behind.
func (a *App) RemoveAttachment(ctx context.Context, id int64) error {
	store := a.Store()
	att, err := store.Attachments().Delete(ctx, id)
	if err != nil {
		return err
	}
	a.removeFiles(store.DataDir(), []types.Attachment{*att})
	return nil
}

// DeleteTodo deletes a todo with its steps, tag links and attachments,
// including the attachment files.
func (a *App) DeleteTodo(ctx context.Context, id int64) error {
	store := a.Store()
	atts, err := store.Todos().Delete(ctx, id)
	if err != nil {
		return err
	}
	a.removeFiles(store.DataDir(), atts)
	return nil
}

func (a *App) removeFiles(dataDir string, atts []types.Attachment) {
	dir := attachments.Dir{Root: dataDir}
	for _, att := range atts {
		if err := dir.Remove(att.FilePath); err != nil {
			a.logger.Warn("remove attachment file", "path", att.FilePath, "error", err)
		}
	}
}

// IsUserError reports whether err stems from bad input rather than a system
// failure.
func IsUserError(err error) bool {
	for _, target := range []error{
		types.ErrNotFound, types.ErrInvalidID, types.ErrInvalidName,
		types.ErrInvalidTitle, types.ErrInvalidStatus, types.ErrDuplicateName,
		types.ErrSelfParent,
		relocate.ErrSamePath, relocate.ErrNestedPath, relocate.ErrEmptyPath,
		attachments.ErrSourceMissing, attachments.ErrTooLarge, attachments.ErrNotRegular,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
