// Package services contains the backend business logic: the vlob store,
// the enrollment state machine, accounts, organizations and block storage.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/common"
	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

// store runs repository work under a deadline, one transaction at a time.
type store struct {
	db      *sql.DB
	timeout time.Duration
	logger  logging.Logger
}

func (s *store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// inTx runs fn in a transaction bounded by the store timeout. A timed-out
// or failed fn leaves nothing behind.
func (s *store) inTx(ctx context.Context, op string, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := dbx.WithTx(ctx, s.db, nil, fn)
	if errors.Is(err, common.ErrIntegrityViolation) {
		s.logger.Error(ctx, "store invariant broken", "op", op, "error", err)
	}
	return err
}
