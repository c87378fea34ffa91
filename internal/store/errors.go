package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicate is returned when an insert hits a unique
	// constraint. For image creation this is the authoritative dedup
	// guard: the existence check and the insert are not atomic, so a
	// concurrent sync can lose the race and must treat this as a skip.
	ErrDuplicate = errors.New("record already exists")

	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")
)

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
