package fetcher

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"xfeed/internal/apierr"
	"xfeed/pkg/feedtypes"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func mustPageURL(t *testing.T, raw string) feedtypes.PageURL {
	t.Helper()
	u, err := feedtypes.ParsePageURL(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestFetcherGetBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond, AllowPrivateHosts: true}, testLogger())
	resp, err := f.GetBody(context.Background(), mustPageURL(t, srv.URL), false)
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if string(resp.Body) != "<html>hello</html>" {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}
}

func TestFetcherPermanent4xxNoRetry(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond, MaxRetries: 3, RetryBaseDelay: time.Millisecond, RetryMaxDelay: time.Millisecond, AllowPrivateHosts: true}, testLogger())
	_, err := f.GetBody(context.Background(), mustPageURL(t, srv.URL), false)
	if err == nil {
		t.Fatal("expected error")
	}
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindOriginClient4xx {
		t.Fatalf("expected KindOriginClient4xx, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected exactly one attempt for a permanent 4xx, got %d", hits)
	}
}

func TestFetcherServerErrorRetries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond, MaxRetries: 3, RetryBaseDelay: time.Millisecond, RetryMaxDelay: 2 * time.Millisecond, AllowPrivateHosts: true}, testLogger())
	resp, err := f.GetBody(context.Background(), mustPageURL(t, srv.URL), false)
	if err != nil {
		t.Fatalf("GetBody: %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
	if hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
}

func TestFetcherCircuitOpensAfterThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond, MaxRetries: 0, CircuitThreshold: 2, CircuitCooldown: time.Hour, AllowPrivateHosts: true}, testLogger())
	target := mustPageURL(t, srv.URL)

	for i := 0; i < 2; i++ {
		if _, err := f.GetBody(context.Background(), target, false); err == nil {
			t.Fatal("expected error")
		}
	}

	_, err := f.GetBody(context.Background(), target, false)
	if err == nil {
		t.Fatal("expected circuit-open error")
	}
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindOriginBlocked {
		t.Fatalf("expected KindOriginBlocked for open circuit, got %v", err)
	}
}

func TestFetcherRejectsPrivateHost(t *testing.T) {
	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond}, testLogger())
	_, err := f.GetBody(context.Background(), mustPageURL(t, "http://127.0.0.1/feed"), false)
	if err == nil {
		t.Fatal("expected error for private host")
	}
	e, ok := apierr.As(err)
	if !ok || e.Kind != apierr.KindInvalidInput {
		t.Fatalf("expected KindInvalidInput, got %v", err)
	}
}

func TestFetcherCircuitIsPerURLNotPerHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/a" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond, MaxRetries: 0, CircuitThreshold: 2, CircuitCooldown: time.Hour, AllowPrivateHosts: true}, testLogger())

	a := mustPageURL(t, srv.URL+"/a")
	b := mustPageURL(t, srv.URL+"/b")

	for i := 0; i < 2; i++ {
		if _, err := f.GetBody(context.Background(), a, false); err == nil {
			t.Fatal("expected error fetching /a")
		}
	}

	if _, err := f.GetBody(context.Background(), a, false); err == nil {
		t.Fatal("expected circuit-open error for /a")
	}

	resp, err := f.GetBody(context.Background(), b, false)
	if err != nil {
		t.Fatalf("expected /b to be unaffected by /a's open circuit, got %v", err)
	}
	if string(resp.Body) != "ok" {
		t.Fatalf("unexpected body: %s", resp.Body)
	}
}

func TestFetcherCachesPermanentFailureForTenMinutes(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(Options{MinGap: time.Millisecond, DiscoveryMinGap: time.Millisecond, AllowPrivateHosts: true}, testLogger())
	target := mustPageURL(t, srv.URL)

	if _, err := f.GetBody(context.Background(), target, false); err == nil {
		t.Fatal("expected error on first fetch")
	}
	if hits != 1 {
		t.Fatalf("expected 1 network call, got %d", hits)
	}

	if _, err := f.GetBody(context.Background(), target, false); err == nil {
		t.Fatal("expected cached failure on second fetch")
	}
	if hits != 1 {
		t.Fatalf("expected the second fetch to be served from the failed-URL cache without a new network call, got %d hits", hits)
	}
}

func TestGateSpacesDiscoveryRequests(t *testing.T) {
	g := NewGate(time.Millisecond, 50*time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	if err := g.Wait(ctx, true); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	if err := g.Wait(ctx, true); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Fatalf("expected discovery gate to space requests by ~50ms, elapsed %v", elapsed)
	}
}
