package events

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/cache"
)

// Cleaner is the part of the resolution cache the cleaner needs.
type Cleaner interface {
	Clean(pattern string) int
}

var _ Cleaner = (*cache.Cacher)(nil)

// CacheCleaner subscribes to names and clears "<namespace>.**" on each of
// them. Repeated events are harmless.
func CacheCleaner(bus *Bus, c Cleaner, namespace string, names ...string) {
	pattern := namespace + "." + cache.Wildcard
	for _, name := range names {
		bus.Subscribe(name, func(ctx context.Context, e Event) {
			n := c.Clean(pattern)
			bus.logger.Debug(ctx, "cache cleaned", "event", e.Name, "pattern", pattern, "removed", n)
		})
	}
}
