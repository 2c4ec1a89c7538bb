package sqlite

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
)

// ExportFile returns the name of the JSONL file a table is exported to.
func ExportFile(table string) string {
	return table + ".jsonl"
}

// ExportTables lists the exported tables in dependency order.
func ExportTables() []string {
	names := make([]string, len(schemaTables))
	for i, def := range schemaTables {
		names[i] = def.name
	}
	return names
}

// Export writes every table to dir as JSONL, one object per row keyed by
// column name, in rowid order. Each file is replaced atomically. The whole
// export reads from a single transaction, so the files are consistent with
// each other.
func (s *Store) Export(ctx context.Context, dir string) (map[string]int, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}

	counts := make(map[string]int, len(schemaTables))
	err := s.withTx(ctx, func(tx *sqlx.Tx) error {
		for _, def := range schemaTables {
			records, err := tableRecords(ctx, tx, def.name)
			if err != nil {
				return fmt.Errorf("export %s: %w", def.name, err)
			}
			if err := writeJSONL(filepath.Join(dir, ExportFile(def.name)), records); err != nil {
				return fmt.Errorf("export %s: %w", def.name, err)
			}
			counts[def.name] = len(records)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := verifyExport(dir, counts); err != nil {
		return nil, err
	}
	s.logger.Info("data exported", "dir", dir, "rows", counts)
	return counts, nil
}

// ExportCounts reads back the files of an export in dir and returns the
// number of records per table. Malformed lines are skipped; their total is
// returned as skipped.
func ExportCounts(dir string) (counts map[string]int, skipped int, err error) {
	counts = make(map[string]int, len(schemaTables))
	for _, def := range schemaTables {
		records, bad, err := readJSONL(filepath.Join(dir, ExportFile(def.name)))
		if err != nil {
			return nil, 0, err
		}
		counts[def.name] = len(records)
		skipped += bad
	}
	return counts, skipped, nil
}

// verifyExport reads the written files back and checks them against the
// row counts taken in the export transaction.
func verifyExport(dir string, want map[string]int) error {
	got, skipped, err := ExportCounts(dir)
	if err != nil {
		return fmt.Errorf("verify export: %w", err)
	}
	if skipped > 0 {
		return fmt.Errorf("verify export: %d malformed lines in %s", skipped, dir)
	}
	for _, def := range schemaTables {
		if got[def.name] != want[def.name] {
			return fmt.Errorf("verify export: %s has %d records, wrote %d",
				ExportFile(def.name), got[def.name], want[def.name])
		}
	}
	return nil
}

func tableRecords(ctx context.Context, q sqlx.QueryerContext, table string) ([]json.RawMessage, error) {
	rows, err := q.QueryxContext(ctx, "SELECT * FROM "+table+" ORDER BY rowid")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []json.RawMessage
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, err
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		rec, err := json.Marshal(row)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// readJSONL reads a JSONL file and returns each non-empty, parseable line as
// a json.RawMessage. Malformed lines are skipped and counted.
func readJSONL(path string) ([]json.RawMessage, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []json.RawMessage
	skipped := 0
	scanner := bufio.NewScanner(f)
	// Rows with long notes exceed the default token size.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if !json.Valid(line) {
			skipped++
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		records = append(records, json.RawMessage(cp))
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, skipped, nil
}

// writeJSONL atomically writes records to a JSONL file using the temp-file,
// fsync, rename pattern.
func writeJSONL(path string, records []json.RawMessage) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}

	w := bufio.NewWriter(tmp)
	for _, rec := range records {
		if _, err := w.Write(rec); err != nil {
			return fail(fmt.Errorf("writing record: %w", err))
		}
		if err := w.WriteByte('\n'); err != nil {
			return fail(fmt.Errorf("writing newline: %w", err))
		}
	}
	if err := w.Flush(); err != nil {
		return fail(fmt.Errorf("flushing buffer: %w", err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(fmt.Errorf("syncing temp file: %w", err))
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
