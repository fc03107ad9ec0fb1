package resultcache

import (
	"time"

	"xfeed/pkg/feedtypes"
)

// DiscoveryCache is the 1-hour-TTL feedtypes.PageURL → DiscoveryOutcome
// cache named in §4.B/§4.F, independent of the content cache.
type DiscoveryCache struct {
	cache *Cache[feedtypes.PageURL, feedtypes.DiscoveryOutcome]
}

// NewDiscoveryCache constructs a discovery cache with the given TTL.
func NewDiscoveryCache(ttl, sweepInterval time.Duration, maxSize int) *DiscoveryCache {
	return &DiscoveryCache{cache: New[feedtypes.PageURL, feedtypes.DiscoveryOutcome](ttl, maxSize, sweepInterval)}
}

// Get returns the cached outcome for page, if present.
func (d *DiscoveryCache) Get(page feedtypes.PageURL) (feedtypes.DiscoveryOutcome, bool) {
	return d.cache.Get(page)
}

// Set stores outcome for page iff it is cacheable (§4.B "only the
// first two are cached" — Found and Negative, never Transient).
func (d *DiscoveryCache) Set(page feedtypes.PageURL, outcome feedtypes.DiscoveryOutcome) {
	if !outcome.Cacheable() {
		return
	}
	d.cache.Set(page, outcome)
}

// Clear removes every cached discovery outcome.
func (d *DiscoveryCache) Clear() { d.cache.Clear() }

// FailedURLCache is the 10-minute-TTL failed-URL presence set of
// §4.B, used by the Discovery Engine to short-circuit to
// Negative(RecentlyFailed) (implements discovery.FailedURLStore).
type FailedURLCache struct {
	cache *Cache[feedtypes.PageURL, struct{}]
}

// NewFailedURLCache constructs a failed-URL presence cache.
func NewFailedURLCache(ttl, sweepInterval time.Duration, maxSize int) *FailedURLCache {
	return &FailedURLCache{cache: New[feedtypes.PageURL, struct{}](ttl, maxSize, sweepInterval)}
}

// Recall reports whether u recently failed discovery.
func (f *FailedURLCache) Recall(u feedtypes.PageURL) bool {
	_, ok := f.cache.Get(u)
	return ok
}

// Remember records u as having just failed discovery.
func (f *FailedURLCache) Remember(u feedtypes.PageURL) {
	f.cache.Set(u, struct{}{})
}
