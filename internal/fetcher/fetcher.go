// Package fetcher implements the Origin Fetcher (§4.A): the sole
// component permitted to perform outbound HTTP to an origin site. It
// applies the private-host filter, a shared rate gate, a per-URL
// circuit breaker, a 10-minute failed-URL cache, and a bounded retry
// policy around a plain net/http.Client.
package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"xfeed/internal/apierr"
	"xfeed/internal/resultcache"
	"xfeed/pkg/feedtypes"
)

// failedURLTTL is the lifetime of a cached permanent-failure entry
// (§3 "FailedURLEntry ... TTL 10 minutes").
const failedURLTTL = 10 * time.Minute

// permanentStatus are the 4xx codes §4.A classifies as not worth
// retrying: the origin has told us, unambiguously, that repeating the
// same request will not help.
var permanentStatus = map[int]struct{}{
	http.StatusBadRequest:                 {},
	http.StatusUnauthorized:               {},
	http.StatusForbidden:                  {},
	http.StatusNotFound:                   {},
	http.StatusMethodNotAllowed:           {},
	http.StatusNotAcceptable:              {},
	http.StatusGone:                       {},
	http.StatusUnavailableForLegalReasons: {},
}

// Response is the normalised result of an origin fetch.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Charset    string
	FinalURL   feedtypes.PageURL
	Latency    time.Duration
}

// Options configures a Fetcher.
type Options struct {
	UserAgent        string
	RequestTimeout   time.Duration
	DiscoveryTimeout time.Duration
	MaxBodyBytes     int64
	MaxRedirects     int
	MinGap           time.Duration
	DiscoveryMinGap  time.Duration
	MaxRetries       int
	RetryBaseDelay   time.Duration
	RetryMaxDelay    time.Duration
	CircuitThreshold int
	CircuitCooldown  time.Duration

	// AllowPrivateHosts disables the private-host filter. It exists
	// for tests that exercise the fetcher against an httptest server
	// bound to loopback; production wiring never sets it.
	AllowPrivateHosts bool
}

// Fetcher is the Origin Fetcher. It is safe for concurrent use.
type Fetcher struct {
	client           *http.Client
	userAgent        string
	maxBodyBytes     int64
	requestTimeout   time.Duration
	discoveryTimeout time.Duration
	maxRetries       int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration

	gate       *Gate
	circuit    *CircuitBreaker
	failedURLs *resultcache.FailedURLCache

	allowPrivateHosts bool
	logger            *slog.Logger
}

// New constructs a Fetcher from Options.
func New(opts Options, logger *slog.Logger) *Fetcher {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 10 * 1024 * 1024
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 5 * time.Second
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryBaseDelay <= 0 {
		opts.RetryBaseDelay = time.Second
	}
	if opts.RetryMaxDelay <= 0 {
		opts.RetryMaxDelay = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = 5
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			if opts.AllowPrivateHosts {
				return nil
			}
			parsed, err := feedtypes.ParsePageURL(req.URL.String())
			if err != nil {
				return fmt.Errorf("redirect target unparsable: %w", err)
			}
			if err := CheckPublicHost(parsed); err != nil {
				return fmt.Errorf("redirect target rejected: %w", err)
			}
			return nil
		},
	}

	return &Fetcher{
		client:            client,
		userAgent:         opts.UserAgent,
		maxBodyBytes:      opts.MaxBodyBytes,
		requestTimeout:    opts.RequestTimeout,
		discoveryTimeout:  opts.DiscoveryTimeout,
		maxRetries:        opts.MaxRetries,
		retryBaseDelay:    opts.RetryBaseDelay,
		retryMaxDelay:     opts.RetryMaxDelay,
		gate:              NewGate(opts.MinGap, opts.DiscoveryMinGap),
		circuit:           NewCircuitBreaker(opts.CircuitThreshold, opts.CircuitCooldown),
		failedURLs:        resultcache.NewFailedURLCache(failedURLTTL, time.Minute, 1000),
		allowPrivateHosts: opts.AllowPrivateHosts,
		logger:            logger,
	}
}

// GetBody performs a GET and returns the fully-buffered, decoded
// response body, subject to MaxBodyBytes.
func (f *Fetcher) GetBody(ctx context.Context, target feedtypes.PageURL, discovery bool) (*Response, error) {
	return f.do(ctx, http.MethodGet, target, discovery, nil)
}

// Head performs a HEAD request, useful for capability probes that do
// not need a body.
func (f *Fetcher) Head(ctx context.Context, target feedtypes.PageURL, discovery bool) (*Response, error) {
	return f.do(ctx, http.MethodHead, target, discovery, nil)
}

// GetRange performs a GET restricted to the first n bytes of the
// response, for callers that do not need the whole document. No code
// in this repository calls it; charset sniffing and feed-candidate
// validation both work on full GetBody responses.
func (f *Fetcher) GetRange(ctx context.Context, target feedtypes.PageURL, discovery bool, n int64) (*Response, error) {
	if n <= 0 {
		n = 4096
	}
	headers := map[string]string{"Range": fmt.Sprintf("bytes=0-%d", n-1)}
	return f.do(ctx, http.MethodGet, target, discovery, headers)
}

func (f *Fetcher) do(ctx context.Context, method string, target feedtypes.PageURL, discovery bool, extraHeaders map[string]string) (*Response, error) {
	if !f.allowPrivateHosts {
		if err := CheckPublicHost(target); err != nil {
			return nil, apierr.Wrap(apierr.KindInvalidInput, "target host is not permitted", err)
		}
	}

	if f.failedURLs.Recall(target) {
		return nil, apierr.New(apierr.KindOriginClient4xx, "url recently returned a non-retryable error")
	}

	key := target.String()
	if !f.circuit.Allow(key, time.Now()) {
		remaining := f.circuit.Remaining(key, time.Now())
		return nil, apierr.New(apierr.KindOriginBlocked, fmt.Sprintf("circuit open for %s", key)).WithRetryAfter(remaining)
	}

	timeout := f.requestTimeout
	if discovery {
		timeout = f.discoveryTimeout
	}

	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := f.backoff(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := f.gate.Wait(ctx, discovery); err != nil {
			return nil, err
		}

		resp, err := f.attempt(ctx, method, target, timeout, extraHeaders)
		if err == nil {
			f.circuit.RecordSuccess(key, time.Now())
			return resp, nil
		}

		lastErr = err
		if !f.retryable(err) {
			f.circuit.RecordFailure(key, time.Now())
			if e, ok := apierr.As(err); ok && e.Kind == apierr.KindOriginClient4xx {
				f.failedURLs.Remember(target)
			}
			return nil, err
		}
		f.logger.Debug("fetch attempt failed, retrying", "url", target.String(), "attempt", attempt, "error", err)
	}

	f.circuit.RecordFailure(key, time.Now())
	return nil, lastErr
}

func (f *Fetcher) attempt(ctx context.Context, method string, target feedtypes.PageURL, timeout time.Duration, extraHeaders map[string]string) (*Response, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(reqCtx, method, target.String(), nil)
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "build request", err)
	}
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}
	httpReq.Header.Set("Accept", "application/rss+xml,application/atom+xml,application/xml;q=0.9,text/html,*/*;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range extraHeaders {
		httpReq.Header.Set(k, v)
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierr.Wrap(apierr.KindOriginTimeout, "origin did not respond in time", err)
		}
		return nil, apierr.Wrap(apierr.KindOriginUnreachable, "origin unreachable", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode >= 500 {
		return nil, apierr.New(apierr.KindOriginServer5xx, fmt.Sprintf("origin returned %d", httpResp.StatusCode))
	}
	if httpResp.StatusCode == http.StatusTooManyRequests {
		if secs, ok := retryAfterSeconds(httpResp.Header); ok {
			return nil, apierr.New(apierr.KindRateLimited, fmt.Sprintf("origin rate-limited us, retry after %ds", secs)).WithRetryAfter(time.Duration(secs) * time.Second)
		}
		return nil, apierr.New(apierr.KindRateLimited, "origin rate-limited us")
	}
	if _, permanent := permanentStatus[httpResp.StatusCode]; permanent {
		return nil, apierr.New(apierr.KindOriginClient4xx, fmt.Sprintf("origin returned %d", httpResp.StatusCode))
	}
	if httpResp.StatusCode >= 400 {
		return nil, apierr.New(apierr.KindOriginClient4xx, fmt.Sprintf("origin returned %d", httpResp.StatusCode))
	}

	var body []byte
	if method != http.MethodHead {
		body, err = f.readBody(httpResp)
		if err != nil {
			return nil, apierr.Wrap(apierr.KindOriginUnreachable, "read response body", err)
		}
	}

	finalURL := target
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		if parsed, perr := feedtypes.ParsePageURL(httpResp.Request.URL.String()); perr == nil {
			finalURL = parsed
		}
	}

	var cs string
	if len(body) > 0 {
		cs = detectCharset(httpResp.Header, body)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header.Clone(),
		Body:       body,
		Charset:    cs,
		FinalURL:   finalURL,
		Latency:    time.Since(start),
	}, nil
}

func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	var extraClosers []io.Closer

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		extraClosers = append(extraClosers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		extraClosers = append(extraClosers, fl)
	}
	defer func() {
		for _, c := range extraClosers {
			_ = c.Close()
		}
	}()

	limited := io.LimitReader(reader, f.maxBodyBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodyBytes)
	}
	return body, nil
}

// retryable reports whether the classified error is worth another
// attempt: timeouts, unreachability, and 5xx are retried; blocked
// hosts and permanent 4xx are not.
func (f *Fetcher) retryable(err error) bool {
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

// backoff computes an exponential delay with jitter, capped at
// RetryMaxDelay (§4.A "retry policy").
func (f *Fetcher) backoff(attempt int) time.Duration {
	base := f.retryBaseDelay
	delay := base * time.Duration(1<<uint(attempt-1))
	if delay > f.retryMaxDelay || delay <= 0 {
		delay = f.retryMaxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(delay) / 4+1))
	return delay - jitter/2
}

// retryAfterSeconds extracts a Retry-After header value in seconds,
// when present and well-formed.
func retryAfterSeconds(h http.Header) (int, bool) {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
