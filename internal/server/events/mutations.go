package events

import (
	"context"

	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/store"
)

// MetaFunc extracts event metadata from a request context.
type MetaFunc func(ctx context.Context) Meta

// MutationPublisher returns the store hook of namespace: every write first
// broadcasts the namespace clear and then the entity-changed event.
func MutationPublisher(bus *Bus, namespace string, meta MetaFunc) store.MutationHook {
	if meta == nil {
		meta = func(context.Context) Meta { return Meta{} }
	}
	return func(ctx context.Context, m store.Mutation, snapshot *models.User) {
		md := meta(ctx)

		bus.Publish(ctx, Event{Name: CleanEventName(namespace), Meta: md})

		var entity models.PublicUser
		if snapshot != nil {
			entity = snapshot.Public()
		}
		bus.Publish(ctx, Event{
			Name:   EntityEventName(namespace, string(m)),
			Type:   string(m),
			Entity: entity,
			Meta:   md,
		})
	}
}
