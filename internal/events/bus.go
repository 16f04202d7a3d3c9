package events

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophvault/internal/logging"
)

// Subscriber receives published events. Errors are logged by the Bus and
// never reach the publisher.
type Subscriber interface {
	Handle(ctx context.Context, e Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc func(ctx context.Context, e Event) error

func (f SubscriberFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus is an explicit subscriber registry. Components that publish receive
// the Bus they publish to; there is no process-wide instance.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
	logger logging.Logger
}

type subscription struct {
	name string
	sub  Subscriber
}

func NewBus(logger logging.Logger) *Bus {
	return &Bus{
		subs:   make(map[int]subscription),
		logger: logger.With("module", "events"),
	}
}

// Subscribe registers s under name and returns a function removing it.
func (b *Bus) Subscribe(name string, s Subscriber) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{name: name, sub: s}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers every event to every subscriber, in order. Delivery is
// best effort: a failing subscriber is logged and the others still run.
func (b *Bus) Publish(ctx context.Context, evts ...Event) {
	if len(evts) == 0 {
		return
	}
	b.mu.RLock()
	subs := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	for _, e := range evts {
		for _, s := range subs {
			if err := s.sub.Handle(ctx, e); err != nil {
				b.logger.Warn(ctx, "event delivery failed",
					"subscriber", s.name, "kind", e.Kind(), "organization", e.Organization(), "error", err)
			}
		}
	}
}
