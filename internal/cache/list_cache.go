// Package cache provides the process-wide read-through cache for short,
// rarely changing lists.
package cache

import (
	"sync"
	"time"
)

// DefaultTTL is the expiry used for the client list.
const DefaultTTL = 5 * time.Minute

// Clock returns the current time.
type Clock func() time.Time

// Recorder observes cache hits and misses.
type Recorder interface {
	CacheHit(name string)
	CacheMiss(name string)
}

// ListCache holds one list with a time-based expiry. It has no cross-process
// invalidation: other instances may serve a stale list for up to the TTL.
//
// Every Invalidate starts a new generation. A fill loaded under an older
// generation is discarded, so a list read before a write is never cached
// after that write's invalidation.
type ListCache[T any] struct {
	name     string
	ttl      time.Duration
	now      Clock
	recorder Recorder

	mu        sync.RWMutex
	items     []T
	expiresAt time.Time
	filled    bool
	gen       uint64
}

// Option configures a ListCache.
type Option func(*options)

type options struct {
	now      Clock
	recorder Recorder
}

// WithClock replaces the wall clock.
func WithClock(now Clock) Option {
	return func(o *options) {
		o.now = now
	}
}

// WithRecorder reports hits and misses.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// NewListCache creates an empty cache. A non-positive ttl disables caching.
func NewListCache[T any](name string, ttl time.Duration, opts ...Option) *ListCache[T] {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return &ListCache[T]{
		name:     name,
		ttl:      ttl,
		now:      o.now,
		recorder: o.recorder,
	}
}

// Get returns a copy of the cached list if present and unexpired, and the
// current generation to pass to Set after a miss.
func (c *ListCache[T]) Get() ([]T, uint64, bool) {
	c.mu.RLock()
	gen := c.gen
	hit := c.filled && c.now().Before(c.expiresAt)
	var out []T
	if hit {
		out = make([]T, len(c.items))
		copy(out, c.items)
	}
	c.mu.RUnlock()

	if c.recorder != nil {
		if hit {
			c.recorder.CacheHit(c.name)
		} else {
			c.recorder.CacheMiss(c.name)
		}
	}
	return out, gen, hit
}

// Set stores a copy of items for one TTL if no Invalidate happened since gen
// was read. It reports whether the list was stored.
func (c *ListCache[T]) Set(items []T, gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ttl <= 0 || gen != c.gen {
		return false
	}
	c.items = make([]T, len(items))
	copy(c.items, items)
	c.expiresAt = c.now().Add(c.ttl)
	c.filled = true
	return true
}

// Invalidate drops the cached list.
func (c *ListCache[T]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gen++
	c.items = nil
	c.filled = false
	c.expiresAt = time.Time{}
}

// SetTTL changes the expiry applied by later Set calls.
func (c *ListCache[T]) SetTTL(ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ttl = ttl
}

// TTL returns the current expiry.
func (c *ListCache[T]) TTL() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ttl
}
