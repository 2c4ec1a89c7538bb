package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Step is one schema migration. Applies inspects the live schema and
// reports whether Apply still has work to do; a step whose Applies returns
// false is skipped, so running the whole list twice is a no-op.
type Step struct {
	Name    string
	Applies func(ctx context.Context, q sqlx.QueryerContext) (bool, error)
	Apply   func(ctx context.Context, tx *sqlx.Tx, logger *slog.Logger) error
}

// Migration step names.
const (
	StepIntegerIDs    = "integer-ids"
	StepIntegerStatus = "integer-status"
)

// migrationSteps is the ordered list run at every open.
var migrationSteps = []Step{
	{
		Name: StepIntegerIDs,
		Applies: func(ctx context.Context, q sqlx.QueryerContext) (bool, error) {
			return columnIsText(ctx, q, tableTodos, "id")
		},
		Apply: migrateIntegerIDs,
	},
	{
		Name: StepIntegerStatus,
		Applies: func(ctx context.Context, q sqlx.QueryerContext) (bool, error) {
			return columnIsText(ctx, q, tableTodos, "status")
		},
		Apply: migrateIntegerStatus,
	},
}

// MigrationError reports the step that failed. The step's transaction has
// been rolled back when this error is returned.
type MigrationError struct {
	Step string
	Err  error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration step %s failed: %v", e.Step, e.Err)
}

func (e *MigrationError) Unwrap() error {
	return e.Err
}

// Migrate runs every applicable migration step against db and returns the
// names of the steps that ran. It stops at the first failing step.
func Migrate(ctx context.Context, db *sqlx.DB, logger *slog.Logger) ([]string, error) {
	return runSteps(ctx, db, migrationSteps, logger)
}

func runSteps(ctx context.Context, db *sqlx.DB, steps []Step, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	// PRAGMA foreign_keys is per connection and ignored inside a
	// transaction, so every step runs on one pinned connection.
	conn, err := db.Connx(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()

	var applied []string
	for _, step := range steps {
		ok, err := step.Applies(ctx, conn)
		if err != nil {
			return applied, &MigrationError{Step: step.Name, Err: fmt.Errorf("probe: %w", err)}
		}
		if !ok {
			continue
		}

		logger.Info("migration started", "step", step.Name)
		if err := runStep(ctx, conn, step, logger); err != nil {
			logger.Error("migration failed", "step", step.Name, "error", err)
			return applied, &MigrationError{Step: step.Name, Err: err}
		}
		logger.Info("migration completed", "step", step.Name)
		applied = append(applied, step.Name)
	}
	return applied, nil
}

// runStep applies one step in a single transaction with foreign-key
// enforcement disabled, then verifies referential integrity before commit.
func runStep(ctx context.Context, conn *sqlx.Conn, step Step, logger *slog.Logger) (err error) {
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys: %w", err)
	}
	defer func() {
		if _, ferr := conn.ExecContext(ctx, "PRAGMA foreign_keys = ON"); ferr != nil && err == nil {
			err = fmt.Errorf("enable foreign keys: %w", ferr)
		}
	}()

	tx, err := conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := step.Apply(ctx, tx, logger); err != nil {
		return err
	}

	if err := checkForeignKeys(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type fkViolation struct {
	Table  string `db:"table"`
	RowID  *int64 `db:"rowid"`
	Parent string `db:"parent"`
	FKID   int64  `db:"fkid"`
}

// checkForeignKeys fails when PRAGMA foreign_key_check reports any row.
func checkForeignKeys(ctx context.Context, q sqlx.QueryerContext) error {
	var violations []fkViolation
	if err := sqlx.SelectContext(ctx, q, &violations, "PRAGMA foreign_key_check"); err != nil {
		return fmt.Errorf("foreign key check: %w", err)
	}
	if len(violations) > 0 {
		v := violations[0]
		return fmt.Errorf("foreign key check: %d violations, first in %s referencing %s", len(violations), v.Table, v.Parent)
	}
	return nil
}

// columnIsText reports whether table.column still holds text values. Any
// text value counts; an empty table falls back to the declared column type.
// A probe that fails because the table or column is missing means there is
// nothing to migrate.
func columnIsText(ctx context.Context, q sqlx.QueryerContext, table, column string) (bool, error) {
	query := fmt.Sprintf(
		"SELECT typeof(%[1]s) FROM %[2]s WHERE %[1]s IS NOT NULL ORDER BY typeof(%[1]s) = 'text' DESC LIMIT 1",
		column, table)

	var runtimeType string
	if err := sqlx.GetContext(ctx, q, &runtimeType, query); err == nil {
		return runtimeType == "text", nil
	} else if !isNoRows(err) {
		return false, nil
	}

	declared, err := declaredType(ctx, q, table, column)
	if err != nil {
		return false, err
	}
	return strings.Contains(strings.ToUpper(declared), "TEXT"), nil
}

// declaredType returns the column type from the table definition, or ""
// when the column does not exist.
func declaredType(ctx context.Context, q sqlx.QueryerContext, table, column string) (string, error) {
	var declared []string
	err := sqlx.SelectContext(ctx, q, &declared,
		"SELECT type FROM pragma_table_info(?) WHERE name = ?", table, column)
	if err != nil {
		return "", fmt.Errorf("read declared type of %s.%s: %w", table, column, err)
	}
	if len(declared) == 0 {
		return "", nil
	}
	return declared[0], nil
}

// hasColumn reports whether table declares column.
func hasColumn(ctx context.Context, q sqlx.QueryerContext, table, column string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, q, &n,
		"SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?", table, column)
	if err != nil {
		return false, fmt.Errorf("inspect %s: %w", table, err)
	}
	return n > 0, nil
}

// existingTables returns the set of user tables in the database.
func existingTables(ctx context.Context, q sqlx.QueryerContext) (map[string]bool, error) {
	var names []string
	err := sqlx.SelectContext(ctx, q, &names,
		"SELECT name FROM sqlite_master WHERE type = 'table'")
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
