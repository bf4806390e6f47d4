package importer

import (
	"database/sql"
	"math"
	"strconv"
	"time"
)

// sourceTimeLayout is the only string layout recognized in source timestamp
// columns. Values are interpreted as UTC.
const sourceTimeLayout = "2006-01-02 15:04:05"

// NormalizeTimestamp converts a raw source value into an instant. Floats and
// integers are seconds since the Unix epoch, strings must match
// sourceTimeLayout. Anything else yields now.
func NormalizeTimestamp(v any, now time.Time) time.Time {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return now
		}
		sec, frac := math.Modf(t)
		return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
	case int64:
		return time.Unix(t, 0).UTC()
	case time.Time:
		if t.IsZero() {
			return now
		}
		return t.UTC()
	case string:
		return parseSourceTime(t, now)
	case []byte:
		return parseSourceTime(string(t), now)
	default:
		return now
	}
}

func parseSourceTime(s string, now time.Time) time.Time {
	t, err := time.ParseInLocation(sourceTimeLayout, s, time.UTC)
	if err != nil {
		return now
	}
	return t
}

// contentValue converts a raw source value into note content. NULL stays NULL
// so the store decides whether the row is acceptable.
func contentValue(v any) sql.NullString {
	switch c := v.(type) {
	case nil:
		return sql.NullString{}
	case string:
		return sql.NullString{String: c, Valid: true}
	case []byte:
		return sql.NullString{String: string(c), Valid: true}
	case int64:
		return sql.NullString{String: strconv.FormatInt(c, 10), Valid: true}
	case float64:
		return sql.NullString{String: strconv.FormatFloat(c, 'f', -1, 64), Valid: true}
	case bool:
		return sql.NullString{String: strconv.FormatBool(c), Valid: true}
	case time.Time:
		return sql.NullString{String: c.UTC().Format(time.RFC3339), Valid: true}
	default:
		return sql.NullString{}
	}
}
