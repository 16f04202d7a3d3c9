package dbx

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// pgUniqueViolation is the SQLSTATE raised on unique constraint violations.
const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err carries a PostgreSQL unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}

// LockKey folds the given parts into a stable int64 usable as an advisory lock id.
func LockKey(parts ...string) int64 {
	h := fnv.New64a()
	for i, p := range parts {
		if i > 0 {
			_, _ = h.Write([]byte{0})
		}
		_, _ = h.Write([]byte(strings.TrimSpace(p)))
	}
	return int64(h.Sum64())
}

// AdvisoryXactLock takes a transaction-scoped PostgreSQL advisory lock.
// The lock is released on commit or rollback, so db must be a *sql.Tx.
func AdvisoryXactLock(ctx context.Context, db DBTX, key int64) error {
	_, err := db.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", key)
	return err
}
