// Package wshub fans backend events out to connected websocket clients of
// the same organization.
package wshub

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophvault/internal/events"
	"github.com/dmitrijs2005/gophvault/internal/logging"
)

// Hub maintains the set of active clients, grouped by organization.
type Hub struct {
	// organization -> clients
	clients map[string]map[*Client]struct{}

	register   chan *Client
	unregister chan *Client
	// closed when Run returns
	done chan struct{}

	mu     sync.RWMutex
	logger logging.Logger
}

func NewHub(l logging.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     l.With("module", "wshub"),
	}
}

// Run processes registrations until ctx is done, then disconnects every
// client.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			set, ok := h.clients[c.org]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[c.org] = set
			}
			set[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug(ctx, "client connected", "organization", c.org, "device", c.device)

		case c := <-h.unregister:
			h.mu.Lock()
			h.remove(c)
			h.mu.Unlock()

		case <-ctx.Done():
			h.mu.Lock()
			for _, set := range h.clients {
				for c := range set {
					h.remove(c)
				}
			}
			h.mu.Unlock()
			return nil
		}
	}
}

// remove must be called with mu held.
func (h *Hub) remove(c *Client) {
	set, ok := h.clients[c.org]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.org)
	}
}

// Handle implements events.Subscriber. A client whose buffer is full is
// dropped rather than blocking delivery to the others.
func (h *Hub) Handle(ctx context.Context, e events.Event) error {
	msg, err := events.Encode(e)
	if err != nil {
		return err
	}

	var slow []*Client
	h.mu.RLock()
	for c := range h.clients[e.Organization()] {
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) > 0 {
		h.mu.Lock()
		for _, c := range slow {
			h.logger.Warn(ctx, "dropping slow client", "organization", c.org, "device", c.device)
			h.remove(c)
		}
		h.mu.Unlock()
	}
	return nil
}

// Connected returns the number of clients of org.
func (h *Hub) Connected(org string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[org])
}
