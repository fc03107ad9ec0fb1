// Package resultcache implements the Result Cache (§4.F): a generic,
// TTL-bounded, mutex-guarded map with lazy and proactive eviction and
// singleflight-based producer coalescing, grounded on the shape of
// the teacher's request footprint (internal/crawler/footprint.go).
package resultcache

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// Keyer is satisfied by any cache key type with a stable string
// representation; Cache uses it both as the map key and as the
// singleflight coalescing key.
type Keyer interface {
	String() string
}

type entry[V any] struct {
	value      V
	insertedAt time.Time
	expiresAt  time.Time
}

// Cache is a generic TTL cache with an approximate-LRU soft cap and
// coalesced misses. It is safe for concurrent use.
type Cache[K Keyer, V any] struct {
	mu      sync.Mutex
	entries map[string]entry[V]
	ttl     time.Duration
	maxSize int
	group   singleflight.Group

	hits   atomic.Uint64
	misses atomic.Uint64

	stopOnce sync.Once
	stop     chan struct{}
}

// New constructs a Cache with the given TTL, soft entry cap, and
// sweep interval. A zero sweepInterval disables the background sweep
// goroutine (entries are still evicted lazily on read).
func New[K Keyer, V any](ttl time.Duration, maxSize int, sweepInterval time.Duration) *Cache[K, V] {
	if maxSize <= 0 {
		maxSize = 100
	}
	c := &Cache[K, V]{
		entries: make(map[string]entry[V]),
		ttl:     ttl,
		maxSize: maxSize,
		stop:    make(chan struct{}),
	}
	if sweepInterval > 0 {
		go c.sweepLoop(sweepInterval)
	}
	return c
}

// Close stops the background sweep goroutine, if any.
func (c *Cache[K, V]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// Get returns the cached value for key if present and unexpired.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	k := key.String()
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[k]
	if !ok {
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	if c.expired(e, now) {
		delete(c.entries, k)
		c.misses.Add(1)
		var zero V
		return zero, false
	}
	c.hits.Add(1)
	return e.value, true
}

// Set stores value under key, evicting the oldest 20% of entries
// first if the insert would overflow the soft cap (§4.F "eviction").
func (c *Cache[K, V]) Set(key K, value V) {
	k := key.String()
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[k]; !exists && len(c.entries) >= c.maxSize {
		c.evictOldestFractionLocked(0.2)
	}
	c.entries[k] = entry[V]{value: value, insertedAt: now, expiresAt: c.expiryFor(now)}
}

// Produce returns the cached value for key, or, on a miss, calls fn
// exactly once across all concurrent callers sharing that key and
// caches its result (§4.F "coalescing", §8 Scenario 6). A producer
// error is returned to every waiter and is not cached.
func (c *Cache[K, V]) Produce(ctx context.Context, key K, fn func(ctx context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}

	k := key.String()
	result, err, _ := c.group.Do(k, func() (interface{}, error) {
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return v, err
		}
		c.Set(key, v)
		return v, nil
	})
	if err != nil {
		var zero V
		return zero, err
	}
	return result.(V), nil
}

// Delete removes a single entry.
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key.String())
}

// DeleteByPrefix removes every entry whose key starts with prefix,
// used to implement clearByPage regardless of options (§4.F).
func (c *Cache[K, V]) DeleteByPrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
}

// Clear removes every entry and resets hit/miss counters (§4.F
// "clear semantics").
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]entry[V])
	c.mu.Unlock()
	c.hits.Store(0)
	c.misses.Store(0)
}

// Stats reports the current entry count and cumulative hit/miss
// counters.
func (c *Cache[K, V]) Stats() (size int, hits, misses uint64) {
	c.mu.Lock()
	size = len(c.entries)
	c.mu.Unlock()
	return size, c.hits.Load(), c.misses.Load()
}

func (c *Cache[K, V]) expired(e entry[V], now time.Time) bool {
	return c.ttl > 0 && now.After(e.expiresAt)
}

func (c *Cache[K, V]) expiryFor(now time.Time) time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return now.Add(c.ttl)
}

// evictOldestFractionLocked evicts the oldest ceil(fraction*len)
// entries by insertion time. Callers must hold c.mu.
func (c *Cache[K, V]) evictOldestFractionLocked(fraction float64) {
	n := int(math.Ceil(float64(len(c.entries)) * fraction))
	if n <= 0 {
		return
	}
	type agedKey struct {
		key    string
		inTime time.Time
	}
	aged := make([]agedKey, 0, len(c.entries))
	for k, e := range c.entries {
		aged = append(aged, agedKey{key: k, inTime: e.insertedAt})
	}
	for i := 0; i < n && len(aged) > 0; i++ {
		oldestIdx := 0
		for j := 1; j < len(aged); j++ {
			if aged[j].inTime.Before(aged[oldestIdx].inTime) {
				oldestIdx = j
			}
		}
		delete(c.entries, aged[oldestIdx].key)
		aged = append(aged[:oldestIdx], aged[oldestIdx+1:]...)
	}
}

func (c *Cache[K, V]) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache[K, V]) sweep() {
	if c.ttl <= 0 {
		return
	}
	now := time.Now()
	c.mu.Lock()
	for k, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, k)
		}
	}
	c.mu.Unlock()
}
