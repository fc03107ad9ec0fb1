package resultcache

import (
	"context"
	"time"

	"xfeed/pkg/feedtypes"
)

// ContentEntry is the value stored in the content cache: the
// assembled feed bytes plus the content-type tag the HTTP layer
// should echo back (§4.F "Value").
type ContentEntry struct {
	Body        []byte
	ContentType string
}

// ContentCache is the assembled-feed-bytes cache of §4.F, keyed by
// sha256(normalized page URL) ⊕ sha256(canonical options).
type ContentCache struct {
	cache *Cache[Key, ContentEntry]
}

// NewContentCache constructs a content cache with the given TTL,
// soft entry cap, and sweep interval.
func NewContentCache(ttl, sweepInterval time.Duration, maxSize int) *ContentCache {
	return &ContentCache{cache: New[Key, ContentEntry](ttl, maxSize, sweepInterval)}
}

// Get returns the cached entry for key, if present.
func (c *ContentCache) Get(key Key) (ContentEntry, bool) {
	return c.cache.Get(key)
}

// Produce returns the cached entry for key, coalescing concurrent
// misses into a single call to fn (§4.F "coalescing", §8 Scenario 6).
func (c *ContentCache) Produce(ctx context.Context, key Key, fn func(ctx context.Context) (ContentEntry, error)) (ContentEntry, error) {
	return c.cache.Produce(ctx, key, fn)
}

// Clear removes every cached entry and resets hit/miss counters.
func (c *ContentCache) Clear() { c.cache.Clear() }

// ClearByPage removes every entry sharing page's hash prefix,
// regardless of options (§4.F "clearByPage").
func (c *ContentCache) ClearByPage(page feedtypes.PageURL) {
	prefix := NewKey(page, feedtypes.Overrides{}).PagePrefix()
	c.cache.DeleteByPrefix(prefix)
}

// Stats reports the current entry count and cumulative hit/miss
// counters.
func (c *ContentCache) Stats() (size int, hits, misses uint64) {
	return c.cache.Stats()
}
