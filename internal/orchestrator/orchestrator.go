// Package orchestrator implements the request pipeline of §4.G: cache
// lookup, discovery, native parse-or-fallback, extraction, and
// assembly, wired together behind a single Request call.
package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"xfeed/internal/apierr"
	"xfeed/internal/assembler"
	"xfeed/internal/discovery"
	"xfeed/internal/extractor"
	"xfeed/internal/feedparse"
	"xfeed/internal/fetcher"
	"xfeed/internal/resultcache"
	"xfeed/internal/robots"
	"xfeed/pkg/feedtypes"
)

const rssContentType = "application/rss+xml; charset=utf-8"

// OriginFetcher is the subset of *fetcher.Fetcher the Orchestrator
// calls directly, so tests can substitute a fake.
type OriginFetcher interface {
	GetBody(ctx context.Context, target feedtypes.PageURL, discovery bool) (*fetcher.Response, error)
}

// Deps bundles every collaborator the Orchestrator needs, matching
// the Design Notes' dependency-injected-context requirement (§4.G).
type Deps struct {
	Fetch              OriginFetcher
	Discovery          *discovery.Engine
	Extractor          *extractor.Extractor
	Robots             *robots.Checker // nil disables the courtesy check
	ContentCache       *resultcache.ContentCache
	DiscoveryCache     *resultcache.DiscoveryCache
	Generator          string
	SiteTTLMinutes     int
	MaxArticlesPerFeed int
	Logger             *slog.Logger
}

// Orchestrator runs the §4.G request pipeline: a cache hit short-
// circuits everything else; a miss runs discovery, then either
// passes an existing feed through or synthesizes one from extracted
// HTML, and the result is stored back in the content cache before
// being returned to every waiter coalesced on the same key.
type Orchestrator struct {
	fetch              OriginFetcher
	discoveryEngine    *discovery.Engine
	extract            *extractor.Extractor
	robotsChecker      *robots.Checker
	contentCache       *resultcache.ContentCache
	discoveryCache     *resultcache.DiscoveryCache
	generator          string
	siteTTLMinutes     int
	maxArticlesPerFeed int
	logger             *slog.Logger
	stats              Stats
}

// New constructs an Orchestrator from its dependencies.
func New(deps Deps) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxArticles := deps.MaxArticlesPerFeed
	if maxArticles <= 0 {
		maxArticles = 50
	}
	ttl := deps.SiteTTLMinutes
	if ttl <= 0 {
		ttl = 60
	}
	generator := deps.Generator
	if generator == "" {
		generator = "xfeed"
	}
	return &Orchestrator{
		fetch:              deps.Fetch,
		discoveryEngine:    deps.Discovery,
		extract:            deps.Extractor,
		robotsChecker:      deps.Robots,
		contentCache:       deps.ContentCache,
		discoveryCache:     deps.DiscoveryCache,
		generator:          generator,
		siteTTLMinutes:     ttl,
		maxArticlesPerFeed: maxArticles,
		logger:             logger,
	}
}

// Stats returns a point-in-time snapshot of the orchestrator's
// counters, consumed by GET /cache/stats.
func (o *Orchestrator) Stats() StatsSnapshot {
	snap := o.stats.snapshot()
	if o.contentCache != nil {
		snap.CacheEntries, snap.CacheHits, snap.CacheMisses = o.contentCache.Stats()
		if total := snap.CacheHits + snap.CacheMisses; total > 0 {
			snap.CacheHitRatio = float64(snap.CacheHits) / float64(total)
		}
	}
	return snap
}

// InvalidateCache drops every cached entry for page, regardless of
// overrides, used by DELETE /cache?url=.
func (o *Orchestrator) InvalidateCache(page feedtypes.PageURL) {
	if o.contentCache != nil {
		o.contentCache.ClearByPage(page)
	}
}

// ClearCache drops the entire content cache, used by DELETE /cache.
func (o *Orchestrator) ClearCache() {
	if o.contentCache != nil {
		o.contentCache.Clear()
	}
	if o.discoveryCache != nil {
		o.discoveryCache.Clear()
	}
}

// Request implements §4.G verbatim: a cache hit returns immediately;
// a miss is produced exactly once per key even under concurrent
// callers, via the content cache's singleflight coalescing.
func (o *Orchestrator) Request(ctx context.Context, page feedtypes.PageURL, opts feedtypes.Overrides) (resultcache.ContentEntry, error) {
	key := resultcache.NewKey(page, opts)
	if o.contentCache == nil {
		return o.produce(ctx, page, opts)
	}
	return o.contentCache.Produce(ctx, key, func(ctx context.Context) (resultcache.ContentEntry, error) {
		return o.produce(ctx, page, opts)
	})
}

func (o *Orchestrator) produce(ctx context.Context, page feedtypes.PageURL, opts feedtypes.Overrides) (resultcache.ContentEntry, error) {
	outcome := o.resolveDiscovery(ctx, page)

	if outcome.IsFound() {
		feedURL, _ := outcome.FeedURL()
		if entry, ok, err := o.tryPassthrough(ctx, page, feedURL, outcome.StrategyUsed(), opts); ok {
			return entry, err
		}
	}

	return o.synthesize(ctx, page, opts)
}

// resolveDiscovery consults the discovery cache before running the
// engine, and stores the fresh outcome back iff cacheable (§4.B).
func (o *Orchestrator) resolveDiscovery(ctx context.Context, page feedtypes.PageURL) feedtypes.DiscoveryOutcome {
	if o.discoveryCache != nil {
		if cached, ok := o.discoveryCache.Get(page); ok {
			return cached
		}
	}
	outcome := o.discoveryEngine.Discover(ctx, page)
	if o.discoveryCache != nil {
		o.discoveryCache.Set(page, outcome)
	}
	if outcome.IsFound() {
		o.stats.recordDiscoveryHit(outcome.StrategyUsed())
	}
	return outcome
}

// tryPassthrough attempts the §4.E mode-1 path. The second return
// value is false when the caller should fall through to synthesis
// rather than treat the attempt as final (robots disallow, fetch
// failure, or a parse/assembly error all fall through).
func (o *Orchestrator) tryPassthrough(ctx context.Context, page, feedURL feedtypes.FeedURL, strategy feedtypes.Strategy, opts feedtypes.Overrides) (resultcache.ContentEntry, bool, error) {
	started := time.Now()

	if o.robotsChecker != nil && !o.robotsChecker.Allowed(ctx, feedURL) {
		o.logger.Debug("robots.txt disallows discovered feed, falling back to synthesis", "feed", feedURL.String())
		return resultcache.ContentEntry{}, false, nil
	}

	resp, err := o.fetch.GetBody(ctx, feedURL, false)
	if err != nil {
		o.logger.Warn("feed fetch failed, falling back to synthesis", "feed", feedURL.String(), "error", err)
		return resultcache.ContentEntry{}, false, nil
	}

	if _, err := feedparse.Parse(resp.Body); err != nil {
		o.logger.Warn("native feed parse failed, falling back to synthesis", "feed", feedURL.String(), "error", err)
		return resultcache.ContentEntry{}, false, nil
	}

	selfLink := o.selfLink(page, opts)
	passOpts := opts
	passOpts.Limit = o.effectiveLimit(opts)
	body, err := assembler.Passthrough(resp.Body, passOpts, time.Now(), o.generator, selfLink)
	if err != nil {
		o.logger.Warn("passthrough assembly failed, falling back to synthesis", "feed", feedURL.String(), "error", err)
		return resultcache.ContentEntry{}, false, nil
	}

	o.stats.recordPassthrough(time.Since(started))
	_ = strategy
	return resultcache.ContentEntry{Body: body, ContentType: rssContentType}, true, nil
}

// synthesize implements the §4.E mode-2 fallback: fetch the page
// itself, extract articles, and build a self-contained RSS document.
func (o *Orchestrator) synthesize(ctx context.Context, page feedtypes.PageURL, opts feedtypes.Overrides) (resultcache.ContentEntry, error) {
	started := time.Now()

	if o.robotsChecker != nil && !o.robotsChecker.Allowed(ctx, page) {
		return resultcache.ContentEntry{}, apierr.New(apierr.KindOriginBlocked, "robots.txt disallows this page")
	}

	resp, err := o.fetch.GetBody(ctx, page, false)
	if err != nil {
		return resultcache.ContentEntry{}, err
	}

	limit := o.effectiveLimit(opts)
	articles, err := o.extract.Extract(resp.Body, page, extractor.Options{MaxArticles: limit, Now: time.Now()})
	if err != nil {
		return resultcache.ContentEntry{}, err
	}

	envelope := o.buildEnvelope(page, articles, opts)
	body, err := assembler.Synthesize(envelope)
	if err != nil {
		return resultcache.ContentEntry{}, err
	}

	o.stats.recordSynthesized(time.Since(started))
	return resultcache.ContentEntry{Body: body, ContentType: rssContentType}, nil
}

// effectiveLimit clamps a caller-requested limit to the server's
// maxArticlesPerFeed ceiling (§9 Open Question 4: the server cap
// always wins when a caller asks for more).
func (o *Orchestrator) effectiveLimit(opts feedtypes.Overrides) int {
	if opts.HasLimit() && opts.Limit < o.maxArticlesPerFeed {
		return opts.Limit
	}
	return o.maxArticlesPerFeed
}

func (o *Orchestrator) buildEnvelope(page feedtypes.PageURL, articles []feedtypes.Article, opts feedtypes.Overrides) feedtypes.FeedEnvelope {
	title := page.Host()
	if opts.HasTitle() {
		title = opts.Title
	}
	description := "Reconstructed feed for " + page.Host()
	if opts.HasDescription() {
		description = opts.Description
	}
	return feedtypes.FeedEnvelope{
		Title:       title,
		Description: description,
		SiteLink:    page.String(),
		SelfLink:    o.selfLink(page, opts).String(),
		TTLMinutes:  o.siteTTLMinutes,
		Generator:   o.generator,
		BuildTime:   time.Now(),
		Items:       articles,
	}
}

// selfLink is left zero-valued: the HTTP layer that knows its own
// base URL and query string is responsible for supplying a concrete
// self-reference when one is available. A zero FeedURL leaves the
// self-link untouched in Passthrough and omitted in Synthesize.
func (o *Orchestrator) selfLink(_ feedtypes.PageURL, _ feedtypes.Overrides) feedtypes.FeedURL {
	return feedtypes.FeedURL{}
}
