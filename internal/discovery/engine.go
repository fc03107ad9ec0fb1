// Package discovery implements the Feed Discovery Engine (§4.B): a
// closed, ordered list of strategies that turn a page URL into a
// candidate feed URL, the first validated candidate winning.
package discovery

import (
	"context"
	"log/slog"

	"xfeed/internal/apierr"
	"xfeed/pkg/feedtypes"
)

// Capabilities gates the strategies the Design Notes describe as
// "conceptually present but disabled by default" (§9 Open
// Question 1): sitemap, robots.txt, and content-mining discovery all
// cost an extra origin fetch, so they are opt-in.
type Capabilities struct {
	EnableSitemap       bool
	EnableRobots        bool
	EnableContentMining bool
}

// FailedURLStore lets the engine short-circuit to
// Negative(RecentlyFailed) for a PageURL that failed discovery inside
// the failed-URL TTL window (§4.B), and record newly failed
// candidates. The concrete TTL map lives in internal/resultcache.
type FailedURLStore interface {
	Recall(u feedtypes.PageURL) bool
	Remember(u feedtypes.PageURL)
}

// strategyStep pairs a Strategy tag with the function that produces
// its ordered candidate list (§9: closed tagged-variant in place of a
// dynamically dispatched strategy list).
type strategyStep struct {
	kind      feedtypes.Strategy
	generate  func(ctx context.Context, e *Engine, page feedtypes.PageURL, headBody []byte) []feedtypes.FeedURL
	needsHead bool
	gated     func(c Capabilities) bool
}

var strategySteps = []strategyStep{
	{kind: feedtypes.StrategyHTMLHead, needsHead: true, generate: func(_ context.Context, _ *Engine, page feedtypes.PageURL, headBody []byte) []feedtypes.FeedURL {
		return htmlHeadCandidates(page, headBody)
	}},
	{kind: feedtypes.StrategyDomainRule, generate: func(_ context.Context, _ *Engine, page feedtypes.PageURL, _ []byte) []feedtypes.FeedURL {
		return domainRuleCandidates(page)
	}},
	{kind: feedtypes.StrategyURLPattern, generate: func(_ context.Context, _ *Engine, page feedtypes.PageURL, _ []byte) []feedtypes.FeedURL {
		return urlPatternCandidates(page)
	}},
	{kind: feedtypes.StrategyCommonPath, generate: func(_ context.Context, _ *Engine, page feedtypes.PageURL, _ []byte) []feedtypes.FeedURL {
		return commonPathCandidates(page)
	}},
	{kind: feedtypes.StrategyWordPress, generate: func(_ context.Context, _ *Engine, page feedtypes.PageURL, _ []byte) []feedtypes.FeedURL {
		return wordPressCandidates(page)
	}},
	{kind: feedtypes.StrategySitemap, gated: func(c Capabilities) bool { return c.EnableSitemap }, generate: func(ctx context.Context, e *Engine, page feedtypes.PageURL, _ []byte) []feedtypes.FeedURL {
		return sitemapCandidates(ctx, e.fetch, page)
	}},
	{kind: feedtypes.StrategyRobots, gated: func(c Capabilities) bool { return c.EnableRobots }, generate: func(ctx context.Context, e *Engine, page feedtypes.PageURL, _ []byte) []feedtypes.FeedURL {
		return robotsCandidates(ctx, e.fetch, page)
	}},
	{kind: feedtypes.StrategyContentMining, needsHead: true, gated: func(c Capabilities) bool { return c.EnableContentMining }, generate: func(_ context.Context, _ *Engine, page feedtypes.PageURL, headBody []byte) []feedtypes.FeedURL {
		return contentMiningCandidates(page, headBody)
	}},
}

// Engine runs the discovery strategy order for a single page URL.
type Engine struct {
	fetch        OriginFetcher
	failed       FailedURLStore
	capabilities Capabilities
	logger       *slog.Logger
}

// New constructs a discovery Engine.
func New(fetch OriginFetcher, failed FailedURLStore, caps Capabilities, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{fetch: fetch, failed: failed, capabilities: caps, logger: logger}
}

// Discover runs the ordered strategy list against page and returns
// the first validated candidate. It never returns an error: failure
// is folded into DiscoveryOutcome (§4.B "the Engine never raises").
func (e *Engine) Discover(ctx context.Context, page feedtypes.PageURL) feedtypes.DiscoveryOutcome {
	if e.failed != nil && e.failed.Recall(page) {
		return feedtypes.Negative(feedtypes.NegativeRecentlyFailed)
	}

	headBody := e.fetchHeadBody(ctx, page)
	sawTransient := headBody.transient

	for _, step := range strategySteps {
		if step.gated != nil && !step.gated(e.capabilities) {
			continue
		}
		if step.needsHead && headBody.body == nil {
			continue
		}
		candidates := step.generate(ctx, e, page, headBody.body)
		for _, candidate := range candidates {
			valid, transient, err := e.validate(ctx, candidate)
			if err != nil {
				e.logger.Warn("discovery candidate check failed", "strategy", step.kind, "candidate", candidate.String(), "error", err)
				if transient {
					sawTransient = true
				}
				continue
			}
			if valid {
				return feedtypes.Found(candidate, step.kind)
			}
			if e.failed != nil {
				e.failed.Remember(candidate)
			}
		}
	}

	if sawTransient {
		return feedtypes.Transient("origin unreachable during discovery")
	}
	if e.failed != nil {
		e.failed.Remember(page)
	}
	return feedtypes.Negative(feedtypes.NegativeNoCandidate)
}

type headFetch struct {
	body      []byte
	transient bool
}

// fetchHeadBody fetches the page itself once, for strategies that
// scan its HTML. A fetch failure merely disables those strategies;
// it does not abort discovery (§4.B "a strategy throw logs at warn
// and the loop continues").
func (e *Engine) fetchHeadBody(ctx context.Context, page feedtypes.PageURL) headFetch {
	resp, err := e.fetch.GetBody(ctx, page, true)
	if err != nil {
		e.logger.Warn("discovery page fetch failed", "page", page.String(), "error", err)
		return headFetch{transient: isTransient(err)}
	}
	return headFetch{body: resp.Body}
}

// validate fetches a candidate feed URL and applies the §4.B validity
// predicate. The second return value reports whether the failure was
// an origin-level transient error rather than a confirmed non-feed.
func (e *Engine) validate(ctx context.Context, candidate feedtypes.FeedURL) (valid bool, transient bool, err error) {
	resp, err := e.fetch.GetBody(ctx, candidate, true)
	if err != nil {
		return false, isTransient(err), err
	}
	return looksLikeFeed(resp.Body), false, nil
}

func isTransient(err error) bool {
	e, ok := apierr.As(err)
	if !ok {
		return false
	}
	switch e.Kind {
	case apierr.KindOriginTimeout, apierr.KindOriginUnreachable, apierr.KindOriginServer5xx, apierr.KindRateLimited:
		return true
	default:
		return false
	}
}
