package pg

import (
	"errors"

	"github.com/jackc/pgx/v5"
)

var (
	ErrEmptyConnString    = errors.New("postgres connection string is empty, set PG_CONN_URL")
	ErrInvalidConnString  = errors.New("invalid postgres connection string")
	ErrNotReady           = errors.New("postgres is not ready")
	ErrMigrate            = errors.New("failed to apply migrations")
	ErrMigrationsNotFound = errors.New("migrations directory not found")
	ErrNoMigrations       = errors.New("no migrations source given")
)

// IsNotFoundError reports whether err is, or wraps, pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}
