package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors returned by the stores.
var (
	// ErrNotFound means the requested row does not exist, or belongs to a
	// different tenant. Callers must not be able to tell those apart.
	ErrNotFound = errors.New("not found")

	// ErrTenantMissing means a tenant id that should have a config row has
	// none. The identity middleware creates rows on first arrival, so this
	// indicates an invariant violation.
	ErrTenantMissing = errors.New("tenant config missing")

	// ErrTokenExhausted means token rotation ran out of attempts without
	// claiming an unused token.
	ErrTokenExhausted = errors.New("token generation attempts exhausted")

	// ErrTokenAmbiguous means one token resolved to more than one tenant,
	// which the unique index is supposed to make impossible.
	ErrTokenAmbiguous = errors.New("token maps to multiple tenants")

	// ErrDuplicateToken means a specific token could not be claimed
	// because another tenant already holds it.
	ErrDuplicateToken = errors.New("token already in use")
)

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
