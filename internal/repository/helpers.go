package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrDuplicate is returned (wrapped) when an insert violates a uniqueness
// constraint. Callers that treat rediscovery as a no-op check for it with
// errors.Is.
var ErrDuplicate = errors.New("duplicate row")

// isUniqueViolation reports whether err is a SQLite uniqueness violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339), Valid: true}
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// jsonColumn marshals v for storage in a TEXT column. Nil or empty slices
// store as NULL so absent and empty stay distinguishable from malformed.
func jsonColumn(v any) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}
	}
	s := string(data)
	if s == "null" || s == "[]" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// scanJSON unmarshals a TEXT column into out, leaving out untouched for NULL.
func scanJSON(col sql.NullString, out any) {
	if !col.Valid || col.String == "" {
		return
	}
	_ = json.Unmarshal([]byte(col.String), out)
}
