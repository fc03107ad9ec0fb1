// Package robots implements the courtesy robots.txt check that
// precedes Origin Fetcher calls, adapted from the teacher's caching
// robots Agent.
package robots

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"

	"xfeed/internal/fetcher"
	"xfeed/pkg/feedtypes"
)

// OriginFetcher is the subset of the Origin Fetcher robots.txt
// fetches go through, so they are still subject to the shared rate
// gate and circuit breaker.
type OriginFetcher interface {
	GetBody(ctx context.Context, target feedtypes.PageURL, discovery bool) (*fetcher.Response, error)
}

type cacheEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// Checker evaluates robots.txt rules with per-host caching.
// Unreachable or malformed robots.txt fails open, matching common
// crawler practice: a courtesy check must never block a fetch the
// site itself didn't clearly disallow.
type Checker struct {
	fetch     OriginFetcher
	userAgent string
	ttl       time.Duration
	respect   bool
	logger    *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// New constructs a robots Checker. When respect is false, Allowed
// always reports true without any network call.
func New(fetch OriginFetcher, userAgent string, ttl time.Duration, respect bool, logger *slog.Logger) *Checker {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		fetch:     fetch,
		userAgent: userAgent,
		ttl:       ttl,
		respect:   respect,
		logger:    logger,
		cache:     make(map[string]cacheEntry),
	}
}

// Allowed reports whether target may be fetched under the target
// host's robots.txt.
func (c *Checker) Allowed(ctx context.Context, target feedtypes.PageURL) bool {
	if !c.respect {
		return true
	}

	rules, err := c.rulesFor(ctx, target)
	if err != nil {
		c.logger.Debug("robots.txt unavailable, failing open", "host", target.Host(), "error", err)
		return true
	}

	group := rules.FindGroup(c.userAgent)
	if group == nil {
		group = rules.FindGroup("*")
		if group == nil {
			return true
		}
	}
	return group.Test(target.Path())
}

func (c *Checker) rulesFor(ctx context.Context, target feedtypes.PageURL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host())

	c.mu.RLock()
	entry, ok := c.cache[host]
	c.mu.RUnlock()
	if ok && time.Since(entry.fetched) < c.ttl {
		return entry.rules, nil
	}

	robotsURL, err := target.Resolve("/robots.txt")
	if err != nil {
		return nil, err
	}
	resp, err := c.fetch.GetBody(ctx, robotsURL, true)
	if err != nil {
		return nil, err
	}

	rules, err := robotstxt.FromBytes(resp.Body)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.cache[host] = cacheEntry{fetched: time.Now(), rules: rules}
	c.mu.Unlock()
	return rules, nil
}
