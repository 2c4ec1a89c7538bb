package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	msqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/rtodo/rtodo/internal/paths"
	"github.com/rtodo/rtodo/pkg/types"
)

// driverName is the database/sql driver registered by modernc.org/sqlite.
const driverName = "sqlite"

func init() {
	sqlx.BindDriver(driverName, sqlx.QUESTION)
}

// connPragmas are applied by the driver to every new connection.
var connPragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"cache_size(-64000)",
	"foreign_keys(1)",
	"temp_store(MEMORY)",
	"busy_timeout(5000)",
}

// Store owns the database file of one data directory. All access goes
// through a single connection guarded by mu, so concurrent callers block
// rather than race.
type Store struct {
	mu      sync.Mutex
	closed  bool
	dataDir string
	db      *sqlx.DB
	logger  *slog.Logger
	now     func() int64

	applied []string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for migration and lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock overrides the epoch-millis clock used for timestamps.
func WithClock(now func() int64) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open opens (creating if needed) the database in dataDir, runs every
// applicable migration step, and ensures the current schema exists. A
// migration failure is fatal: the handle is closed and the error returned,
// so no repository ever sees a half-migrated schema.
func Open(ctx context.Context, dataDir string, opts ...Option) (*Store, error) {
	s := &Store{
		dataDir: dataDir,
		logger:  slog.Default(),
		now:     func() int64 { return time.Now().UnixMilli() },
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := paths.DatabasePath(dataDir)
	db, err := sqlx.Open(driverName, dsn(dbPath, connPragmas))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}

	s.logger.Info("database opened", "path", dbPath)

	applied, err := Migrate(ctx, db, s.logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.applied = applied

	if err := ensureSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	s.db = db
	return s, nil
}

// dsn builds a modernc.org/sqlite data source name with per-connection pragmas.
func dsn(path string, pragmas []string) string {
	if len(pragmas) == 0 {
		return path
	}
	q := url.Values{}
	for _, p := range pragmas {
		q.Add("_pragma", p)
	}
	return path + "?" + q.Encode()
}

// ensureSchema creates any missing table or index of the current schema.
func ensureSchema(ctx context.Context, db *sqlx.DB) error {
	for _, def := range schemaTables {
		if _, err := db.ExecContext(ctx, createTableSQL(def)); err != nil {
			return fmt.Errorf("create table %s: %w", def.name, err)
		}
	}
	for _, ddl := range indexDDL {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

// DataDir returns the directory holding this store's files.
func (s *Store) DataDir() string {
	return s.dataDir
}

// AppliedMigrations returns the names of the migration steps run by Open.
func (s *Store) AppliedMigrations() []string {
	return s.applied
}

// Path returns the database file path.
func (s *Store) Path() string {
	return paths.DatabasePath(s.dataDir)
}

// Close checkpoints the write-ahead log and closes the connection.
// Close is idempotent.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		s.logger.Warn("wal checkpoint failed", "error", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withDB runs fn while holding the store lock.
func (s *Store) withDB(fn func(db *sqlx.DB) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return types.ErrStoreClosed
	}
	return fn(s.db)
}

// withTx runs fn inside a transaction while holding the store lock. The
// transaction commits if fn returns nil and rolls back otherwise.
func (s *Store) withTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	return s.withDB(func(db *sqlx.DB) error {
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// Snapshot writes a transactionally consistent copy of the database to dst
// using VACUUM INTO. The store lock is held for the duration of the copy, so
// concurrent writers wait instead of racing the snapshot. dst must not exist.
func (s *Store) Snapshot(ctx context.Context, dst string) error {
	return s.withDB(func(db *sqlx.DB) error {
		if _, err := os.Stat(s.Path()); err != nil {
			return fmt.Errorf("stat database: %w", err)
		}
		if _, err := db.ExecContext(ctx, "VACUUM INTO "+quoteLiteral(dst)); err != nil {
			return fmt.Errorf("vacuum into %s: %w", dst, err)
		}
		return nil
	})
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// ErrCorrupt is returned by ValidateFile when SQLite's integrity check fails.
var ErrCorrupt = errors.New("database failed integrity check")

// ValidateFile opens the database at path without the store's pragmas and
// confirms it is a readable, well-formed SQLite database.
func ValidateFile(ctx context.Context, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("stat %s: %w", path, err)
	}

	db, err := sqlx.Open(driverName, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer db.Close()

	var result string
	if err := db.GetContext(ctx, &result, "PRAGMA quick_check"); err != nil {
		return fmt.Errorf("check %s: %w", path, err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrCorrupt, result)
	}

	var tables int
	if err := db.GetContext(ctx, &tables, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'"); err != nil {
		return fmt.Errorf("read schema of %s: %w", path, err)
	}
	if tables == 0 {
		return fmt.Errorf("%w: %s has no tables", ErrCorrupt, path)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var se *msqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	code := se.Code()
	if code == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		return true
	}
	// Primary result code only when extended codes are off.
	return code&0xff == sqlite3.SQLITE_CONSTRAINT && strings.Contains(se.Error(), "UNIQUE")
}

// rowsAffected returns ErrNotFound when res touched no rows.
func rowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return types.ErrNotFound
	}
	return nil
}
