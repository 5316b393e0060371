// Package cache memoizes per-entity fetches, such as a vendor's product list.
package cache

import (
	"context"
	"strconv"
	"sync"

	"emart_admin/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

type Fetcher[V any] func(ctx context.Context) (V, error)

// Keyed is a read-through cache. Concurrent misses for one key share a
// single fetch and failed fetches are not stored. Invalidate bumps the key's
// generation, so a fetch that started before it can neither land in the
// cache nor be joined by a later caller.
type Keyed[V any] struct {
	name    string
	mu      sync.RWMutex
	entries map[string]V
	gens    map[string]uint64
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *zap.Logger
}

func NewKeyed[V any](name string, m *metrics.Metrics, logger *zap.Logger) *Keyed[V] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Keyed[V]{
		name:    name,
		entries: make(map[string]V),
		gens:    make(map[string]uint64),
		metrics: m,
		logger:  logger.Named("cache").With(zap.String("cache", name)),
	}
}

// Peek returns the cached value without fetching.
func (c *Keyed[V]) Peek(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *Keyed[V]) GetOrFetch(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	if v, ok := c.Peek(key); ok {
		c.metrics.CacheLookup(c.name, true)
		c.logger.Debug("cache hit", zap.String("key", key))
		return v, nil
	}
	c.metrics.CacheLookup(c.name, false)
	c.logger.Debug("cache miss", zap.String("key", key))
	return c.load(ctx, key, fetch)
}

func (c *Keyed[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	c.gens[key]++
}

// Refresh drops the entry and fetches it again right away.
func (c *Keyed[V]) Refresh(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	c.Invalidate(key)
	return c.load(ctx, key, fetch)
}

func (c *Keyed[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Keyed[V]) load(ctx context.Context, key string, fetch Fetcher[V]) (V, error) {
	c.mu.RLock()
	gen := c.gens[key]
	c.mu.RUnlock()

	v, err, _ := c.group.Do(key+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := fetch(ctx)
		if err != nil {
			return v, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gens[key] == gen {
			c.entries[key] = v
		}
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return v.(V), nil
}
