package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// NewRedisClient connects to the Redis server at url.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// RedisBroadcaster relays local bus events to other nodes over a Redis
// channel and replays their events on the local bus. Delivery is best
// effort: publish failures are logged and dropped.
type RedisBroadcaster struct {
	client  *redis.Client
	channel string
	nodeID  string
	bus     *Bus
	logger  logging.Logger

	sub  *redis.PubSub
	done chan struct{}
}

func NewRedisBroadcaster(client *redis.Client, channel string, bus *Bus, logger logging.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = logging.Nop()
	}
	return &RedisBroadcaster{
		client:  client,
		channel: channel,
		nodeID:  uuid.NewString(),
		bus:     bus,
		logger:  logger.With("module", "broadcaster"),
	}
}

// NodeID identifies this process in relayed events.
func (r *RedisBroadcaster) NodeID() string { return r.nodeID }

// Start subscribes to the channel and attaches the relay to the bus.
func (r *RedisBroadcaster) Start(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return fmt.Errorf("subscribe %s: %w", r.channel, err)
	}

	r.sub = sub
	r.done = make(chan struct{})
	r.bus.Tap(r.forward)
	go r.listen(sub.Channel())

	r.logger.Info(ctx, "broadcaster started", "channel", r.channel, "node", r.nodeID)
	return nil
}

func (r *RedisBroadcaster) forward(ctx context.Context, e Event) {
	if e.Origin != "" {
		return
	}
	e.Origin = r.nodeID

	payload, err := json.Marshal(e)
	if err != nil {
		r.logger.Warn(ctx, "encode event", "name", e.Name, "error", err)
		return
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		r.logger.Warn(ctx, "relay event", "name", e.Name, "error", err)
	}
}

func (r *RedisBroadcaster) listen(ch <-chan *redis.Message) {
	defer close(r.done)

	ctx := context.Background()
	for msg := range ch {
		var e Event
		if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
			r.logger.Warn(ctx, "decode relayed event", "error", err)
			continue
		}
		if e.Origin == "" || e.Origin == r.nodeID {
			continue
		}
		r.bus.Publish(ctx, e)
	}
}

// Close unsubscribes and waits for the listener to stop.
func (r *RedisBroadcaster) Close() error {
	if r.sub == nil {
		return nil
	}
	err := r.sub.Close()
	<-r.done
	return err
}
