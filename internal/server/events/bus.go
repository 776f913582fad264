// Package events is the invalidation bus: an in-process publish/subscribe
// dispatcher for entity-changed and cache-clean notifications, with an
// optional Redis relay to other nodes.
package events

import (
	"context"
	"sync"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

// Meta identifies who caused an event.
type Meta struct {
	UserID    string `json:"userId,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// Event is a bus message. Entity is empty for cache-clean broadcasts.
// Origin is set only on events relayed from another node.
type Event struct {
	Name   string            `json:"name"`
	Type   string            `json:"type,omitempty"`
	Entity models.PublicUser `json:"entity"`
	Meta   Meta              `json:"meta"`
	Origin string            `json:"origin,omitempty"`
}

// EntityEventName is "<namespace>.entity.<type>".
func EntityEventName(namespace, typ string) string {
	return namespace + ".entity." + typ
}

// CleanEventName is the namespace-clear broadcast "cache.clean.<namespace>".
func CleanEventName(namespace string) string {
	return "cache.clean." + namespace
}

// Handler receives published events.
type Handler func(ctx context.Context, e Event)

// Bus dispatches events to subscribers synchronously, in subscription order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	taps     []Handler
	logger   logging.Logger
}

func NewBus(logger logging.Logger) *Bus {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Bus{
		handlers: make(map[string][]Handler),
		logger:   logger.With("module", "events"),
	}
}

// Subscribe registers h for events named name.
func (b *Bus) Subscribe(name string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], h)
}

// Tap registers h for every event regardless of name.
func (b *Bus) Tap(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.taps = append(b.taps, h)
}

// Publish delivers e to the handlers subscribed to e.Name, then to taps.
// It returns once every handler has run.
func (b *Bus) Publish(ctx context.Context, e Event) {
	b.mu.RLock()
	handlers := append([]Handler(nil), b.handlers[e.Name]...)
	taps := append([]Handler(nil), b.taps...)
	b.mu.RUnlock()

	b.logger.Debug(ctx, "event published", "name", e.Name, "origin", e.Origin, "handlers", len(handlers))

	for _, h := range handlers {
		h(ctx, e)
	}
	for _, h := range taps {
		h(ctx, e)
	}
}
