package storage

import (
	"database/sql"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// timeLayout is the on-disk timestamp format. It is fixed-width so that
// lexical ordering of the column matches chronological ordering, and it
// matches the strftime default in schema.sql.
const timeLayout = "2006-01-02T15:04:05.000Z"

type Thought struct {
	ID        int64
	Content   string
	Metadata  *string // serialized JSON; nil means no metadata was captured
	Timestamp time.Time
}

// ImportRow is a normalized row produced by an importer. Content is nullable
// so that the store's NOT NULL constraint has the final say.
type ImportRow struct {
	Content   sql.NullString
	Timestamp time.Time
}
