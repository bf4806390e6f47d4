package importer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		columns []Column
		want    Candidate
	}{
		{
			name:    "body without timestamp",
			columns: []Column{{"id", "INTEGER"}, {"body", "TEXT"}},
			want:    Candidate{ContentColumn: "body"},
		},
		{
			name:    "first content match wins",
			columns: []Column{{"note", "TEXT"}, {"content", "TEXT"}},
			want:    Candidate{ContentColumn: "note"},
		},
		{
			name:    "case insensitive names and types",
			columns: []Column{{"Text", "varchar"}, {"Created_At", "DATETIME"}},
			want:    Candidate{ContentColumn: "Text", TimestampColumn: "Created_At"},
		},
		{
			name:    "timestamp with unsupported type is ignored",
			columns: []Column{{"content", "TEXT"}, {"date", "BLOB"}, {"updated_at", "REAL"}},
			want:    Candidate{ContentColumn: "content", TimestampColumn: "updated_at"},
		},
		{
			name:    "untyped timestamp column is ignored",
			columns: []Column{{"content", ""}, {"timestamp", ""}},
			want:    Candidate{ContentColumn: "content"},
		},
		{
			name:    "no content column",
			columns: []Column{{"title", "TEXT"}, {"created_at", "INTEGER"}},
			want:    Candidate{TimestampColumn: "created_at"},
		},
		{
			name: "empty",
			want: Candidate{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.columns))
		})
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	now := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)
	driverTime := time.Date(2022, 2, 2, 2, 2, 2, 0, time.FixedZone("X", 3600))

	tests := []struct {
		name string
		in   any
		want time.Time
	}{
		{"integer epoch", int64(1700000000), time.Unix(1700000000, 0).UTC()},
		{"float epoch keeps fraction", 1700000000.5, time.Unix(1700000000, 500000000).UTC()},
		{"pattern string", "2023-01-01 12:00:00", time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"pattern bytes", []byte("2023-01-01 12:00:00"), time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC)},
		{"driver time", driverTime, driverTime.UTC()},
		{"malformed string", "last tuesday", now},
		{"iso string is not the pattern", "2023-01-01T12:00:00Z", now},
		{"null", nil, now},
		{"bool", true, now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.want.Equal(NormalizeTimestamp(tt.in, now)), "got %v", NormalizeTimestamp(tt.in, now))
		})
	}
}

func TestContentValue(t *testing.T) {
	assert.False(t, contentValue(nil).Valid)
	assert.Equal(t, "hi", contentValue([]byte("hi")).String)
	assert.Equal(t, "42", contentValue(int64(42)).String)
	assert.Equal(t, "1.25", contentValue(1.25).String)
}
