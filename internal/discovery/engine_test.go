package discovery

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"xfeed/internal/apierr"
	"xfeed/internal/fetcher"
	"xfeed/pkg/feedtypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustPage(t *testing.T, raw string) feedtypes.PageURL {
	t.Helper()
	u, err := feedtypes.ParsePageURL(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

// fakeFetcher serves canned bodies keyed by full URL string, so tests
// can script a page's HTML plus the responses for any candidates the
// engine probes.
type fakeFetcher struct {
	bodies map[string]string
	err    map[string]error
	calls  []string
}

func (f *fakeFetcher) GetBody(_ context.Context, target feedtypes.PageURL, _ bool) (*fetcher.Response, error) {
	key := target.String()
	f.calls = append(f.calls, key)
	if err, ok := f.err[key]; ok {
		return nil, err
	}
	body, ok := f.bodies[key]
	if !ok {
		return nil, apierr.New(apierr.KindOriginClient4xx, "origin returned 404")
	}
	return &fetcher.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type noopFailedStore struct{}

func (noopFailedStore) Recall(feedtypes.PageURL) bool  { return false }
func (noopFailedStore) Remember(feedtypes.PageURL)     {}

func TestDiscoverHTMLHeadWins(t *testing.T) {
	page := mustPage(t, "https://blog.example.com/")
	feedBody := "<rss version=\"2.0\"><channel><title>x</title></channel></rss>" + string(make([]byte, 10))

	f := &fakeFetcher{bodies: map[string]string{
		page.String():                             `<html><head><link type="application/rss+xml" href="/feed.xml"></head></html>`,
		"https://blog.example.com/feed.xml":        feedBody,
	}}

	e := New(f, noopFailedStore{}, Capabilities{}, testLogger())
	outcome := e.Discover(context.Background(), page)

	if !outcome.IsFound() {
		t.Fatalf("expected Found, got reason=%s", outcome.Reason())
	}
	feedURL, _ := outcome.FeedURL()
	if feedURL.String() != "https://blog.example.com/feed.xml" {
		t.Fatalf("unexpected feed url: %s", feedURL.String())
	}
	if outcome.StrategyUsed() != feedtypes.StrategyHTMLHead {
		t.Fatalf("expected html-head strategy, got %s", outcome.StrategyUsed())
	}
}

func TestDiscoverDomainRulePathToRSS(t *testing.T) {
	page := mustPage(t, "https://vnexpress.net/the-gioi")
	feedBody := "<rss version=\"2.0\"><channel><title>x</title></channel></rss>" + string(make([]byte, 10))

	f := &fakeFetcher{bodies: map[string]string{
		page.String():                                  `<html><head></head></html>`,
		"https://vnexpress.net/rss/the-gioi.rss":        feedBody,
	}}

	e := New(f, noopFailedStore{}, Capabilities{}, testLogger())
	outcome := e.Discover(context.Background(), page)

	if !outcome.IsFound() {
		t.Fatalf("expected Found, got reason=%s", outcome.Reason())
	}
	if outcome.StrategyUsed() != feedtypes.StrategyDomainRule {
		t.Fatalf("expected domain-rule strategy, got %s", outcome.StrategyUsed())
	}
}

func TestDiscoverNoCandidateIsNegative(t *testing.T) {
	page := mustPage(t, "https://example-blog.test/")
	f := &fakeFetcher{bodies: map[string]string{
		page.String(): `<html><head></head><body>nothing here</body></html>`,
	}}

	e := New(f, noopFailedStore{}, Capabilities{}, testLogger())
	outcome := e.Discover(context.Background(), page)

	if !outcome.IsNegative() {
		t.Fatalf("expected Negative, got %+v", outcome)
	}
}

func TestDiscoverRecentlyFailedShortCircuits(t *testing.T) {
	page := mustPage(t, "https://example-blog.test/")
	f := &fakeFetcher{bodies: map[string]string{}}

	store := &recordingFailedStore{recall: true}
	e := New(f, store, Capabilities{}, testLogger())
	outcome := e.Discover(context.Background(), page)

	if !outcome.IsNegative() || outcome.Reason() != feedtypes.NegativeRecentlyFailed.String() {
		t.Fatalf("expected RecentlyFailed negative, got %+v", outcome)
	}
	if len(f.calls) != 0 {
		t.Fatalf("expected no network calls, got %d", len(f.calls))
	}
}

type recordingFailedStore struct {
	recall bool
}

func (r *recordingFailedStore) Recall(feedtypes.PageURL) bool { return r.recall }
func (r *recordingFailedStore) Remember(feedtypes.PageURL)    {}
