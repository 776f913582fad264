package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dmitrijs2005/gophauth/internal/server/cache"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(_ context.Context, e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) first() Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.events[0]
}

func startNode(t *testing.T, mr *miniredis.Miniredis) (*Bus, *RedisBroadcaster) {
	t.Helper()
	client, err := NewRedisClient(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)

	bus := NewBus(nil)
	b := NewRedisBroadcaster(client, "gophauth.events", bus, nil)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() {
		_ = b.Close()
		_ = client.Close()
	})
	return bus, b
}

func TestRedisBroadcaster_RelaysBetweenNodes(t *testing.T) {
	mr := miniredis.RunT(t)

	busA, nodeA := startNode(t, mr)
	busB, _ := startNode(t, mr)

	onA, onB := &collector{}, &collector{}
	busA.Subscribe("users.entity.deleted", onA.handle)
	busB.Subscribe("users.entity.deleted", onB.handle)

	busA.Publish(context.Background(), Event{
		Name:   "users.entity.deleted",
		Type:   "deleted",
		Entity: models.PublicUser{ID: "u1", Username: "alice"},
	})

	require.Eventually(t, func() bool { return onB.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	relayed := onB.first()
	assert.Equal(t, nodeA.NodeID(), relayed.Origin)
	assert.Equal(t, "alice", relayed.Entity.Username)

	// the publisher does not receive its own event twice
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, onA.len())
	assert.Equal(t, 1, onB.len())
}

func TestRedisBroadcaster_RemoteCleanClearsLocalCache(t *testing.T) {
	mr := miniredis.RunT(t)

	busA, _ := startNode(t, mr)
	busB, _ := startNode(t, mr)

	c := cache.New(10, time.Hour, nil)
	CacheCleaner(busB, c, "users", "cache.clean.users")
	c.Set("users.me:1", 1)

	busA.Publish(context.Background(), Event{Name: "cache.clean.users"})

	assert.Eventually(t, func() bool { return c.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestNewRedisClient_Errors(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "invalid://url")
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisClient(context.Background(), "redis://"+addr)
	assert.Error(t, err)
}
