package sqlite

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// isUniqueViolation checks if the error is a SQLite unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isNoRows checks if the error indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// boolToInt converts a Go bool to the integer form SQLite stores.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// formatTime serializes a timestamp for storage as TEXT.
func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTime deserializes a stored TEXT timestamp.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

// formatTimePtr serializes an optional timestamp, returning nil for nil.
func formatTimePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
