// Package cache implements the resolution cache: a bounded, TTL-expiring
// in-memory map keyed by "<namespace>.<action>:<key>" that is cleared a
// namespace at a time when the invalidation bus reports a mutation.
package cache

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"
)

// Wildcard matches every key when passed to Clean, or every key of a
// namespace as the suffix of "<namespace>.".
const Wildcard = "**"

// Cacher is a namespaced TTL cache. Cached values may be nil.
//
// Every Clean bumps a generation: the global one for "**", the namespace's
// one otherwise. Memoize only stores a result whose fetch started in the
// current generation, so a fetch racing a clean never repopulates the
// cache with pre-clean data.
type Cacher struct {
	lru     *lru.LRU[string, any]
	metrics *metrics
	flight  singleflight.Group

	mu    sync.Mutex
	epoch uint64
	gens  map[string]uint64
}

// New creates a Cacher holding at most size entries for ttl each. Counters
// are registered on reg when it is non-nil.
func New(size int, ttl time.Duration, reg prometheus.Registerer) *Cacher {
	if size <= 0 {
		size = 1
	}
	return &Cacher{
		lru:     lru.NewLRU[string, any](size, nil, ttl),
		metrics: newMetrics(reg),
		gens:    make(map[string]uint64),
	}
}

// Key builds a cache key from its parts.
func Key(namespace, action, key string) string {
	return namespace + "." + action + ":" + key
}

// Get returns the cached value and whether key was present.
func (c *Cacher) Get(key string) (any, bool) {
	v, ok := c.lru.Get(key)
	if ok {
		c.metrics.hit(key)
	} else {
		c.metrics.miss(key)
	}
	return v, ok
}

// Set stores v under key, replacing any previous value.
func (c *Cacher) Set(key string, v any) {
	c.lru.Add(key, v)
}

// Clean removes entries matching pattern: "**" drops everything,
// "<namespace>.**" drops a namespace and any other value drops one key.
// It returns the number of entries removed.
func (c *Cacher) Clean(pattern string) int {
	c.metrics.clean(pattern)

	c.mu.Lock()
	defer c.mu.Unlock()

	if pattern == Wildcard {
		c.epoch++
		n := c.lru.Len()
		c.lru.Purge()
		return n
	}

	c.gens[namespaceOf(pattern)]++

	prefix, isPrefix := strings.CutSuffix(pattern, Wildcard)
	if !isPrefix {
		if c.lru.Remove(pattern) {
			return 1
		}
		return 0
	}

	n := 0
	for _, k := range c.lru.Keys() {
		if strings.HasPrefix(k, prefix) && c.lru.Remove(k) {
			n++
		}
	}
	return n
}

// generation identifies the clean state key belongs to. Both counters only
// grow, so their sum changes whenever either does.
func (c *Cacher) generation(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch + c.gens[namespaceOf(key)]
}

// setIfCurrent stores v unless key's namespace was cleaned since gen.
func (c *Cacher) setIfCurrent(key string, v any, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch+c.gens[namespaceOf(key)] != gen {
		return false
	}
	c.lru.Add(key, v)
	return true
}

// Len reports the number of live entries.
func (c *Cacher) Len() int {
	return c.lru.Len()
}

// Memoize returns the value cached under key or computes it with fn.
// Concurrent misses on the same key share one call to fn. Successful
// results are cached even when they are the zero value; errors are
// returned without caching. A result is not cached when the key's
// namespace was cleaned while fn ran, and callers arriving after such a
// clean start a fresh call instead of joining the old one.
//
// fn runs detached from ctx cancellation so an abandoned caller cannot fail
// the others sharing the call; the abandoned caller itself returns
// ctx.Err() without waiting.
func Memoize[T any](ctx context.Context, c *Cacher, key string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	if v, ok := c.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
		if v == nil {
			return zero, nil
		}
	}

	gen := c.generation(key)
	detached := context.WithoutCancel(ctx)
	ch := c.flight.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := fn(detached)
		if err != nil {
			return nil, err
		}
		c.setIfCurrent(key, v, gen)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		typed, _ := res.Val.(T)
		return typed, nil
	}
}
