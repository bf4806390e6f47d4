package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// DBFileName is the name of the database file inside the data directory.
const DBFileName = "thoughts.sqlite3"

// Store wraps the SQLite database holding captured thoughts.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// Open opens (or creates) a SQLite database in dataDir and ensures the schema exists.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn, path string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		path = filepath.Join(dataDir, DBFileName)
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	// This also keeps an in-memory database alive for the life of the Store.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db, path: path, now: time.Now}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path, or "" for an in-memory store.
func (s *Store) Path() string {
	return s.path
}

// Create persists a new thought stamped with the current time.
func (s *Store) Create(ctx context.Context, content string, metadata *string) (Thought, error) {
	t := Thought{
		Content:   content,
		Metadata:  metadata,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO thoughts (content, metadata, timestamp) VALUES (?, ?, ?)`,
		t.Content, nullString(metadata), t.Timestamp.Format(timeLayout),
	)
	if err != nil {
		return Thought{}, fmt.Errorf("inserting thought: %w", err)
	}
	if t.ID, err = res.LastInsertId(); err != nil {
		return Thought{}, fmt.Errorf("reading thought id: %w", err)
	}
	return t, nil
}

// Get returns a single thought by ID.
func (s *Store) Get(ctx context.Context, id int64) (Thought, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, content, metadata, timestamp FROM thoughts WHERE id = ?`, id)
	t, err := scanThought(row)
	if err == sql.ErrNoRows {
		return Thought{}, ErrNotFound
	}
	return t, err
}

// ListAll returns every thought, newest first. A non-empty search restricts
// the result to thoughts whose content contains it.
func (s *Store) ListAll(ctx context.Context, search string) ([]Thought, error) {
	query := `SELECT id, content, metadata, timestamp FROM thoughts`
	var args []any
	if search != "" {
		query += ` WHERE instr(content, ?) > 0`
		args = append(args, search)
	}
	query += ` ORDER BY timestamp DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Thought
	for rows.Next() {
		t, err := scanThought(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// Count returns the number of stored thoughts.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM thoughts`).Scan(&n)
	return n, err
}

// DeleteAll removes every thought and reports how many were deleted.
func (s *Store) DeleteAll(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM thoughts`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// BulkInsert writes rows inside a single transaction. Either every row is
// committed or none is; a zero Timestamp is replaced with the current time.
func (s *Store) BulkInsert(ctx context.Context, rows []ImportRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning bulk insert: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO thoughts (content, timestamp) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing bulk insert: %w", err)
	}
	defer stmt.Close()

	now := s.now().UTC()
	for i, r := range rows {
		ts := r.Timestamp
		if ts.IsZero() {
			ts = now
		}
		if _, err := stmt.ExecContext(ctx, r.Content, ts.UTC().Format(timeLayout)); err != nil {
			return 0, fmt.Errorf("inserting row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing bulk insert: %w", err)
	}
	return len(rows), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanThought(r rowScanner) (Thought, error) {
	var t Thought
	var metadata sql.NullString
	var ts string
	if err := r.Scan(&t.ID, &t.Content, &metadata, &ts); err != nil {
		return Thought{}, err
	}
	if metadata.Valid {
		m := metadata.String
		t.Metadata = &m
	}
	parsed, err := parseTimestamp(ts)
	if err != nil {
		return Thought{}, fmt.Errorf("parsing timestamp of thought %d: %w", t.ID, err)
	}
	t.Timestamp = parsed
	return t, nil
}

// parseTimestamp accepts the store's own layout plus the formats older
// databases were written with (ISO strings and CURRENT_TIMESTAMP).
func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{timeLayout, time.RFC3339Nano, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
