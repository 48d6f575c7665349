package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolationCode is the PostgreSQL SQLSTATE for unique constraint
// violations. The unique indexes on users(email), users(nickname) and
// sessions(token_hash) are the authoritative arbiters of uniqueness;
// application-level pre-checks are advisory only.
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}

// isNoRows reports whether err indicates an empty result.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
