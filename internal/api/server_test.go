package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"xfeed/internal/discovery"
	"xfeed/internal/extractor"
	"xfeed/internal/fetcher"
	"xfeed/internal/orchestrator"
	"xfeed/internal/resultcache"
	"xfeed/pkg/feedtypes"
)

type fakeFetcher struct {
	bodies map[string]string
}

func (f *fakeFetcher) GetBody(_ context.Context, target feedtypes.PageURL, _ bool) (*fetcher.Response, error) {
	body, ok := f.bodies[target.String()]
	if !ok {
		return nil, &notFoundErr{}
	}
	return &fetcher.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
}

type notFoundErr struct{}

func (e *notFoundErr) Error() string { return "not found" }

type noopFailedStore struct{}

func (noopFailedStore) Recall(feedtypes.PageURL) bool { return false }
func (noopFailedStore) Remember(feedtypes.PageURL)    {}

const serverTestHTML = `<html><head><title>Example</title></head><body>
<article><h2><a href="https://example.com/article-one">A Sufficiently Long Article Title</a></h2><p>A description long enough to pass the minimum character threshold for extraction purposes here.</p></article>
<article><h2><a href="https://example.com/article-two">Another Sufficiently Long Article Title</a></h2><p>Another description long enough to pass the minimum character threshold for extraction purposes here.</p></article>
</body></html>`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fetch := &fakeFetcher{bodies: map[string]string{
		"https://example.com/": serverTestHTML,
	}}
	eng := discovery.New(fetch, noopFailedStore{}, discovery.Capabilities{}, logger)
	ext := extractor.New(logger)
	orch := orchestrator.New(orchestrator.Deps{
		Fetch:              fetch,
		Discovery:          eng,
		Extractor:          ext,
		ContentCache:       resultcache.NewContentCache(time.Hour, 0, 100),
		DiscoveryCache:     resultcache.NewDiscoveryCache(time.Hour, 0, 100),
		Generator:          "xfeed-test",
		MaxArticlesPerFeed: 50,
		Logger:             logger,
	})
	return NewServer(orch, 3600, logger)
}

func TestHandleFeedSynthesizesRSS(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/feed?url="+url.QueryEscape("https://example.com/"), nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/rss+xml") {
		t.Fatalf("expected rss content type, got %q", ct)
	}
	if rr.Header().Get("ETag") == "" {
		t.Fatal("expected an ETag header")
	}
	if !strings.Contains(rr.Body.String(), "<rss") {
		t.Fatalf("expected rss body, got %s", rr.Body.String())
	}
}

func TestHandleFeedRejectsMissingURL(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/feed", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestHandleFeedRejectsPrivateHost(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/feed?url="+url.QueryEscape("http://127.0.0.1/"), nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for private host, got %d", rr.Code)
	}
}

func TestHandlePreviewReturnsArticles(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/preview?url="+url.QueryEscape("https://example.com/")+"&limit=2", nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "\"articles\"") {
		t.Fatalf("expected articles field, got %s", rr.Body.String())
	}
}

func TestHandleMetadataReportsNoFeed(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/metadata?url="+url.QueryEscape("https://example.com/"), nil)
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "\"hasFeed\":true") {
		t.Fatalf("expected no feed to be detected, got %s", rr.Body.String())
	}
}

func TestHandleValidatePostBody(t *testing.T) {
	server := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/validate", strings.NewReader(`{"url":"https://example.com/"}`))
	rr := httptest.NewRecorder()
	server.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body=%s)", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "\"accessible\":true") {
		t.Fatalf("expected accessible=true, got %s", rr.Body.String())
	}
}

func TestHandleCacheStatsAndDelete(t *testing.T) {
	server := newTestServer(t)

	statsReq := httptest.NewRequest(http.MethodGet, "/cache/stats", nil)
	statsRR := httptest.NewRecorder()
	server.ServeHTTP(statsRR, statsReq)
	if statsRR.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", statsRR.Code)
	}

	deleteReq := httptest.NewRequest(http.MethodDelete, "/cache", nil)
	deleteRR := httptest.NewRecorder()
	server.ServeHTTP(deleteRR, deleteReq)
	if deleteRR.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", deleteRR.Code)
	}
}
