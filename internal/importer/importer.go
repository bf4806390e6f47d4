// Package importer loads note-like rows from an arbitrary SQLite database by
// guessing which columns hold content and timestamps.
package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aupadhyay/thoughts/internal/storage"
)

// ErrSourceUnreadable is returned when the source cannot be opened or its
// table list cannot be read. Nothing is imported in that case.
var ErrSourceUnreadable = errors.New("import source unreadable")

// BulkInserter is the store primitive the importer writes through.
type BulkInserter interface {
	BulkInsert(ctx context.Context, rows []storage.ImportRow) (int, error)
}

// TableResult describes what happened to one source table.
type TableResult struct {
	Table           string `json:"table"`
	ContentColumn   string `json:"contentColumn"`
	TimestampColumn string `json:"timestampColumn"`
	Imported        int    `json:"imported"`
	Skipped         bool   `json:"skipped"`
	Error           string `json:"error,omitempty"`
}

// Report summarizes one import run.
type Report struct {
	RunID    string        `json:"runId"`
	Source   string        `json:"source"`
	Imported int           `json:"importedCount"`
	Tables   []TableResult `json:"tables"`
}

// Importer copies rows from foreign SQLite databases into the store.
type Importer struct {
	store  BulkInserter
	logger *slog.Logger
	now    func() time.Time
}

// New creates an Importer. A nil logger falls back to slog.Default().
func New(store BulkInserter, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: store, logger: logger, now: time.Now}
}

// ImportFrom imports every table of the database at path that has a
// content-like column. Each table is inserted in its own transaction; a table
// that fails is rolled back and reported while the remaining tables proceed.
// Re-importing the same source inserts the rows again.
func (im *Importer) ImportFrom(ctx context.Context, path string) (Report, error) {
	report := Report{RunID: uuid.New().String(), Source: path, Tables: []TableResult{}}
	log := im.logger.With("run_id", report.RunID, "source", path)

	src, err := openSource(path)
	if err != nil {
		return report, err
	}
	defer src.Close()

	tables, err := listTables(ctx, src)
	if err != nil {
		return report, fmt.Errorf("%w: listing tables: %v", ErrSourceUnreadable, err)
	}
	log.Info("import started", "tables", len(tables))

	for _, table := range tables {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		res := im.importTable(ctx, src, table)
		if res.Error != "" {
			log.Warn("table import failed", "table", table, "error", res.Error)
		} else if res.Skipped {
			log.Debug("table skipped, no content column", "table", table)
		} else {
			log.Debug("table imported", "table", table, "rows", res.Imported,
				"content_column", res.ContentColumn, "timestamp_column", res.TimestampColumn)
		}
		report.Imported += res.Imported
		report.Tables = append(report.Tables, res)
	}

	log.Info("import finished", "imported", report.Imported)
	return report, nil
}

func (im *Importer) importTable(ctx context.Context, src *sql.DB, table string) TableResult {
	res := TableResult{Table: table}

	columns, err := tableColumns(ctx, src, table)
	if err != nil {
		res.Error = fmt.Sprintf("reading columns: %v", err)
		return res
	}

	cand := Classify(columns)
	res.ContentColumn = cand.ContentColumn
	res.TimestampColumn = cand.TimestampColumn
	if cand.ContentColumn == "" {
		res.Skipped = true
		return res
	}

	rows, err := readRows(ctx, src, table, cand, im.now().UTC())
	if err != nil {
		res.Error = fmt.Sprintf("reading rows: %v", err)
		return res
	}

	n, err := im.store.BulkInsert(ctx, rows)
	if err != nil {
		res.Error = err.Error()
		return res
	}
	res.Imported = n
	return res
}

func openSource(path string) (*sql.DB, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrSourceUnreadable, path)
	}

	dsn := (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs), RawQuery: "mode=ro"}).String()
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrSourceUnreadable, err)
	}
	return db, nil
}

func listTables(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func tableColumns(ctx context.Context, db *sql.DB, table string) ([]Column, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?)`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.Type); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func readRows(ctx context.Context, db *sql.DB, table string, cand Candidate, now time.Time) ([]storage.ImportRow, error) {
	query := "SELECT " + quoteIdent(cand.ContentColumn)
	if cand.TimestampColumn != "" {
		query += ", " + quoteIdent(cand.TimestampColumn)
	}
	query += " FROM " + quoteIdent(table)

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []storage.ImportRow
	for rows.Next() {
		var content, ts any
		dest := []any{&content}
		if cand.TimestampColumn != "" {
			dest = append(dest, &ts)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, storage.ImportRow{
			Content:   contentValue(content),
			Timestamp: NormalizeTimestamp(ts, now),
		})
	}
	return out, rows.Err()
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
