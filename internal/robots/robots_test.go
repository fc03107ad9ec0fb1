package robots

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"xfeed/internal/apierr"
	"xfeed/internal/fetcher"
	"xfeed/pkg/feedtypes"
)

type fakeFetcher struct {
	body string
	err  error
}

func (f *fakeFetcher) GetBody(_ context.Context, _ feedtypes.PageURL, _ bool) (*fetcher.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &fetcher.Response{StatusCode: http.StatusOK, Body: []byte(f.body)}, nil
}

func mustPage(t *testing.T, raw string) feedtypes.PageURL {
	t.Helper()
	u, err := feedtypes.ParsePageURL(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestCheckerDisallowsBlockedPath(t *testing.T) {
	f := &fakeFetcher{body: "User-agent: *\nDisallow: /private\n"}
	c := New(f, "xfeedbot", time.Minute, true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if c.Allowed(context.Background(), mustPage(t, "https://example.com/private/page")) {
		t.Fatal("expected disallowed path to be blocked")
	}
	if !c.Allowed(context.Background(), mustPage(t, "https://example.com/public/page")) {
		t.Fatal("expected non-disallowed path to be allowed")
	}
}

func TestCheckerFailsOpenOnFetchError(t *testing.T) {
	f := &fakeFetcher{err: apierr.New(apierr.KindOriginUnreachable, "unreachable")}
	c := New(f, "xfeedbot", time.Minute, true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if !c.Allowed(context.Background(), mustPage(t, "https://example.com/anything")) {
		t.Fatal("expected fail-open on robots fetch error")
	}
}

func TestCheckerSkipsNetworkWhenNotRespecting(t *testing.T) {
	f := &fakeFetcher{err: apierr.New(apierr.KindOriginUnreachable, "should not be called")}
	c := New(f, "xfeedbot", time.Minute, false, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if !c.Allowed(context.Background(), mustPage(t, "https://example.com/anything")) {
		t.Fatal("expected allowed when respect=false")
	}
}
