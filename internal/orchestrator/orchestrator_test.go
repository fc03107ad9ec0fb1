package orchestrator

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"xfeed/internal/discovery"
	"xfeed/internal/extractor"
	"xfeed/internal/fetcher"
	"xfeed/internal/resultcache"
	"xfeed/pkg/feedtypes"
)

func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func mustPage(t *testing.T, raw string) feedtypes.PageURL {
	t.Helper()
	u, err := feedtypes.ParsePageURL(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

// routingFetcher serves canned bodies keyed by exact URL, letting a
// single fake stand in for both the page fetch and the feed fetch.
type routingFetcher struct {
	bodies map[string]string
	calls  map[string]int
}

func newRoutingFetcher() *routingFetcher {
	return &routingFetcher{bodies: map[string]string{}, calls: map[string]int{}}
}

func (f *routingFetcher) GetBody(_ context.Context, target feedtypes.PageURL, _ bool) (*fetcher.Response, error) {
	key := target.String()
	f.calls[key]++
	body, ok := f.bodies[key]
	if !ok {
		return nil, &notFoundErr{}
	}
	return &fetcher.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "no canned body" }

type noopFailedStore struct{}

func (noopFailedStore) Recall(feedtypes.PageURL) bool { return false }
func (noopFailedStore) Remember(feedtypes.PageURL)    {}

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
<title>Example</title>
<link>https://example.com</link>
<description>desc</description>
<item><title>First headline here</title><link>https://example.com/1</link><description>A long enough description for the item.</description><pubDate>Mon, 02 Jan 2023 15:04:05 +0000</pubDate></item>
</channel></rss>`

const sampleHTMLNoFeed = `<html><head><title>Example</title></head><body>
<article><h2><a href="https://example.com/article-one">A Sufficiently Long Article Title</a></h2><p>A description long enough to pass the minimum character threshold for extraction purposes here.</p></article>
<article><h2><a href="https://example.com/article-two">Another Sufficiently Long Article Title</a></h2><p>Another description long enough to pass the minimum character threshold for extraction purposes here.</p></article>
</body></html>`

func newTestOrchestrator(t *testing.T, fetch *routingFetcher) *Orchestrator {
	t.Helper()
	eng := discovery.New(fetch, noopFailedStore{}, discovery.Capabilities{}, testLogger())
	ext := extractor.New(testLogger())
	return New(Deps{
		Fetch:              fetch,
		Discovery:          eng,
		Extractor:          ext,
		ContentCache:       resultcache.NewContentCache(time.Hour, 0, 100),
		DiscoveryCache:     resultcache.NewDiscoveryCache(time.Hour, 0, 100),
		Generator:          "xfeed-test",
		MaxArticlesPerFeed: 50,
		Logger:             testLogger(),
	})
}

func TestRequestPassthroughWhenFeedDiscovered(t *testing.T) {
	fetch := newRoutingFetcher()
	page := mustPage(t, "https://example.com/")
	feedURL := mustPage(t, "https://example.com/feed")
	fetch.bodies[page.String()] = sampleHTMLNoFeed // has no <link> feed hints, so html-head fails
	fetch.bodies[feedURL.String()] = sampleFeed

	orch := newTestOrchestrator(t, fetch)
	entry, err := orch.Request(context.Background(), page, feedtypes.Overrides{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(entry.Body) == 0 {
		t.Fatal("expected non-empty body")
	}

	snap := orch.Stats()
	if snap.PassthroughCount != 1 {
		t.Fatalf("expected one passthrough, got %d", snap.PassthroughCount)
	}
}

func TestRequestSynthesizesWhenNoFeedDiscovered(t *testing.T) {
	fetch := newRoutingFetcher()
	page := mustPage(t, "https://example.com/")
	fetch.bodies[page.String()] = sampleHTMLNoFeed

	orch := newTestOrchestrator(t, fetch)
	entry, err := orch.Request(context.Background(), page, feedtypes.Overrides{})
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if len(entry.Body) == 0 {
		t.Fatal("expected non-empty body")
	}

	snap := orch.Stats()
	if snap.SynthesizedCount != 1 {
		t.Fatalf("expected one synthesis, got %d", snap.SynthesizedCount)
	}
}

func TestRequestCachesSecondCallWithoutRefetch(t *testing.T) {
	fetch := newRoutingFetcher()
	page := mustPage(t, "https://example.com/")
	fetch.bodies[page.String()] = sampleHTMLNoFeed

	orch := newTestOrchestrator(t, fetch)
	if _, err := orch.Request(context.Background(), page, feedtypes.Overrides{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	firstCalls := fetch.calls[page.String()]

	if _, err := orch.Request(context.Background(), page, feedtypes.Overrides{}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if fetch.calls[page.String()] != firstCalls {
		t.Fatalf("expected cached second request not to refetch: %d -> %d", firstCalls, fetch.calls[page.String()])
	}
}

func TestInvalidateCacheForcesRefetch(t *testing.T) {
	fetch := newRoutingFetcher()
	page := mustPage(t, "https://example.com/")
	fetch.bodies[page.String()] = sampleHTMLNoFeed

	orch := newTestOrchestrator(t, fetch)
	if _, err := orch.Request(context.Background(), page, feedtypes.Overrides{}); err != nil {
		t.Fatalf("first request: %v", err)
	}
	orch.InvalidateCache(page)

	if _, err := orch.Request(context.Background(), page, feedtypes.Overrides{}); err != nil {
		t.Fatalf("second request: %v", err)
	}
	if fetch.calls[page.String()] < 2 {
		t.Fatalf("expected invalidated cache to trigger a refetch, got %d calls", fetch.calls[page.String()])
	}
}
