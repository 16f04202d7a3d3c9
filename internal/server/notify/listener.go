package notify

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
	"github.com/lib/pq"
)

const (
	minReconnectInterval = 1 * time.Second
	maxReconnectInterval = 30 * time.Second
	pingInterval         = 90 * time.Second
)

// pqListener is the part of *pq.Listener used here.
type pqListener interface {
	Listen(channel string) error
	NotificationChannel() <-chan *pq.Notification
	Ping() error
	Close() error
}

var newPQListener = func(dsn string, cb pq.EventCallbackType) pqListener {
	return pq.NewListener(dsn, minReconnectInterval, maxReconnectInterval, cb)
}

// Listener receives events NOTIFYed by any backend instance and forwards
// them to sink.
type Listener struct {
	dsn     string
	channel string
	sink    events.Subscriber
	logger  logging.Logger
}

func NewListener(dsn, channel string, sink events.Subscriber, l logging.Logger) *Listener {
	return &Listener{
		dsn:     dsn,
		channel: channel,
		sink:    sink,
		logger:  l.With("module", "notify"),
	}
}

func (l *Listener) Run(ctx context.Context) error {
	pl := newPQListener(l.dsn, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			l.logger.Warn(ctx, "listener connection lost", "error", err)
		case pq.ListenerEventReconnected:
			l.logger.Info(ctx, "listener reconnected")
		}
	})
	defer pl.Close()

	if err := pl.Listen(l.channel); err != nil {
		return err
	}
	l.logger.Info(ctx, "Listening for events", "channel", l.channel)

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-pl.NotificationChannel():
			if !ok {
				return nil
			}
			// nil after a reconnect; notifications sent meanwhile are lost.
			if n == nil {
				continue
			}
			l.dispatch(ctx, n.Extra)
		case <-ticker.C:
			go func() { _ = pl.Ping() }()
		}
	}
}

func (l *Listener) dispatch(ctx context.Context, payload string) {
	ev, err := events.Decode([]byte(payload))
	if err != nil {
		l.logger.Warn(ctx, "dropping malformed event", "error", err)
		return
	}
	if err := l.sink.Handle(ctx, ev); err != nil {
		l.logger.Warn(ctx, "event delivery failed", "kind", ev.Kind(), "organization", ev.Organization(), "error", err)
	}
}
