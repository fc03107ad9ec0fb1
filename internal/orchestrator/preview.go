package orchestrator

import (
	"context"
	"time"

	"xfeed/internal/apierr"
	"xfeed/internal/extractor"
	"xfeed/internal/feedparse"
	"xfeed/pkg/feedtypes"
)

// Discover runs (or reuses the cached result of) the Discovery Engine
// for page without fetching or assembling a feed, for GET /metadata.
func (o *Orchestrator) Discover(ctx context.Context, page feedtypes.PageURL) feedtypes.DiscoveryOutcome {
	return o.resolveDiscovery(ctx, page)
}

// PreviewArticles returns up to limit articles for page, preferring a
// discovered native feed over HTML extraction, without assembling or
// caching a feed document (GET /preview, GET /metadata's sample).
func (o *Orchestrator) PreviewArticles(ctx context.Context, page feedtypes.PageURL, limit int) ([]feedtypes.Article, feedtypes.DiscoveryOutcome, error) {
	if limit <= 0 || limit > o.maxArticlesPerFeed {
		limit = o.maxArticlesPerFeed
	}

	outcome := o.resolveDiscovery(ctx, page)
	if outcome.IsFound() {
		feedURL, _ := outcome.FeedURL()
		if o.robotsChecker == nil || o.robotsChecker.Allowed(ctx, feedURL) {
			if resp, err := o.fetch.GetBody(ctx, feedURL, false); err == nil {
				if articles, perr := feedparse.Parse(resp.Body); perr == nil {
					return truncate(articles, limit), outcome, nil
				}
			}
		}
	}

	if o.robotsChecker != nil && !o.robotsChecker.Allowed(ctx, page) {
		return nil, outcome, apierr.New(apierr.KindOriginBlocked, "robots.txt disallows this page")
	}
	resp, err := o.fetch.GetBody(ctx, page, false)
	if err != nil {
		return nil, outcome, err
	}
	articles, err := o.extract.Extract(resp.Body, page, extractor.Options{MaxArticles: limit, Now: time.Now()})
	if err != nil {
		return nil, outcome, err
	}
	return truncate(articles, limit), outcome, nil
}

func truncate(articles []feedtypes.Article, limit int) []feedtypes.Article {
	if limit > 0 && len(articles) > limit {
		return articles[:limit]
	}
	return articles
}
