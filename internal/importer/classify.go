package importer

import "strings"

// Candidate column names and declared types, compared lower-cased.
var (
	contentNames   = []string{"content", "text", "body", "note"}
	timestampNames = []string{"timestamp", "date", "created_at", "updated_at"}
	timestampTypes = []string{"timestamp", "datetime", "date", "integer", "int", "real", "numeric", "text"}
)

// Column is a source column as reported by PRAGMA table_info.
type Column struct {
	Name string
	Type string
}

// Candidate is the classification of one source table. Empty strings mean no
// suitable column was found.
type Candidate struct {
	ContentColumn   string
	TimestampColumn string
}

// Classify picks the first content-like column and the first timestamp-like
// column with an acceptable declared type, both in column order.
func Classify(columns []Column) Candidate {
	var c Candidate
	for _, col := range columns {
		name := strings.ToLower(col.Name)
		if c.ContentColumn == "" && contains(contentNames, name) {
			c.ContentColumn = col.Name
		}
		if c.TimestampColumn == "" && contains(timestampNames, name) && contains(timestampTypes, strings.ToLower(strings.TrimSpace(col.Type))) {
			c.TimestampColumn = col.Name
		}
	}
	return c
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
