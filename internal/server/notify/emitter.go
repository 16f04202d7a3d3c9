// Package notify bridges backend events across instances through
// PostgreSQL LISTEN/NOTIFY.
package notify

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophvault/internal/dbx"
	"github.com/dmitrijs2005/gophvault/internal/events"
)

// Emitter is an events.Subscriber publishing every event on a NOTIFY
// channel. It runs after the data transaction has committed.
type Emitter struct {
	db      dbx.DBTX
	channel string
}

func NewEmitter(db dbx.DBTX, channel string) *Emitter {
	return &Emitter{db: db, channel: channel}
}

func (e *Emitter) Handle(ctx context.Context, ev events.Event) error {
	payload, err := events.Encode(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := e.db.ExecContext(ctx, "SELECT pg_notify($1, $2)", e.channel, string(payload)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
