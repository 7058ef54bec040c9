// Package cache implements the in-memory TTL cache that fronts every remote
// fetch in the dashboard backend. Entries expire lazily at read time and a
// periodic sweep bounds memory. FetchWithCache collapses concurrent fetches
// for the same key into a single producer call so the burn scan never runs
// twice at once.
package cache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// inflight tracks one outstanding producer call. Waiters block on done and
// then read value/err, which are written exactly once before the close.
type inflight[V any] struct {
	done  chan struct{}
	value V
	err   error
}

// Cache is a string-keyed TTL cache with per-key request deduplication.
type Cache[V any] struct {
	entries  *xsync.Map[string, entry[V]]
	inflight *xsync.Map[string, *inflight[V]]
	logger   *zap.Logger
	now      func() time.Time
}

// Option configures a Cache.
type Option[V any] func(*Cache[V])

// WithClock overrides the time source. Used by tests to simulate expiry.
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *Cache[V]) { c.now = now }
}

// New returns an empty cache.
func New[V any](logger *zap.Logger, opts ...Option[V]) *Cache[V] {
	c := &Cache[V]{
		entries:  xsync.NewMap[string, entry[V]](),
		inflight: xsync.NewMap[string, *inflight[V]](),
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores value under key for ttl, replacing any existing entry.
func (c *Cache[V]) Set(key string, value V, ttl time.Duration) {
	c.entries.Store(key, entry[V]{value: value, expiresAt: c.now().Add(ttl)})
}

// Get returns the cached value if it has not expired. Expired entries are
// evicted on the spot.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V
	e, ok := c.entries.Load(key)
	if !ok {
		return zero, false
	}
	if c.now().After(e.expiresAt) {
		c.entries.Delete(key)
		return zero, false
	}
	return e.value, true
}

// Has reports whether key holds a fresh entry, evicting it if expired.
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// FetchWithCache returns the cached value for key, or runs producer to fill
// it. Concurrent callers for the same key share a single producer invocation
// and all receive its result. Producer failures propagate to every waiter and
// are never cached.
func (c *Cache[V]) FetchWithCache(ctx context.Context, key string, producer func(context.Context) (V, error), ttl time.Duration) (V, error) {
	var zero V

	if v, ok := c.Get(key); ok {
		return v, nil
	}

	call := &inflight[V]{done: make(chan struct{})}
	if existing, loaded := c.inflight.LoadOrStore(key, call); loaded {
		select {
		case <-existing.done:
			return existing.value, existing.err
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}

	// We own the slot. Re-check the cache: a Set may have landed between the
	// freshness check and the claim.
	if v, ok := c.Get(key); ok {
		call.value = v
		c.inflight.Delete(key)
		close(call.done)
		return v, nil
	}

	value, err := producer(ctx)
	if err == nil {
		c.Set(key, value, ttl)
	}
	call.value, call.err = value, err
	c.inflight.Delete(key)
	close(call.done)
	return value, err
}

// Invalidate removes key. In-flight producer calls are unaffected; their
// waiters still receive the shared result.
func (c *Cache[V]) Invalidate(key string) {
	c.entries.Delete(key)
}

// Clear drops every cached entry.
func (c *Cache[V]) Clear() {
	c.entries.Range(func(key string, _ entry[V]) bool {
		c.entries.Delete(key)
		return true
	})
}

// Sweep evicts expired entries and returns how many were removed. Scheduled
// from the app cron; correctness never depends on it running.
func (c *Cache[V]) Sweep() int {
	now := c.now()
	removed := 0
	c.entries.Range(func(key string, e entry[V]) bool {
		if now.After(e.expiresAt) {
			c.entries.Delete(key)
			removed++
		}
		return true
	})
	if removed > 0 && c.logger != nil {
		c.logger.Debug("Swept expired cache entries", zap.Int("removed", removed))
	}
	return removed
}

// Size returns the number of entries, fresh or not yet swept.
func (c *Cache[V]) Size() int {
	return c.entries.Size()
}
