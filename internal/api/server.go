// Package api adapts the feed reconstruction core onto HTTP (§6):
// the thin, explicitly out-of-core router and its per-field request
// validation, in the teacher's plain net/http.ServeMux style.
package api

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"xfeed/internal/apierr"
	"xfeed/internal/orchestrator"
	"xfeed/pkg/feedtypes"
)

// Server exposes the HTTP surface over an Orchestrator.
type Server struct {
	orch         *orchestrator.Orchestrator
	mux          *http.ServeMux
	cacheMaxAgeS int
	logger       *slog.Logger
}

// NewServer wires handlers onto an HTTP mux.
func NewServer(orch *orchestrator.Orchestrator, cacheMaxAgeSeconds int, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheMaxAgeSeconds <= 0 {
		cacheMaxAgeSeconds = 3600
	}
	s := &Server{
		orch:         orch,
		mux:          http.NewServeMux(),
		cacheMaxAgeS: cacheMaxAgeSeconds,
		logger:       logger,
	}
	s.routes()
	return s
}

// ServeHTTP satisfies the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/feed", s.handleFeedRSS)
	s.mux.HandleFunc("/feed.atom", s.handleFeedAtom)
	s.mux.HandleFunc("/preview", s.handlePreview)
	s.mux.HandleFunc("/metadata", s.handleMetadata)
	s.mux.HandleFunc("/validate", s.handleValidate)
	s.mux.HandleFunc("/cache/stats", s.handleCacheStats)
	s.mux.HandleFunc("/cache", s.handleCacheDelete)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "timestamp": time.Now().UTC()})
}

// handleFeedRSS serves GET /feed: RSS 2.0 content type.
func (s *Server) handleFeedRSS(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, "application/rss+xml; charset=utf-8")
}

// handleFeedAtom serves GET /feed.atom: identical body, Atom content
// type preserved for reader compatibility per §6's explicit mismatch.
func (s *Server) handleFeedAtom(w http.ResponseWriter, r *http.Request) {
	s.serveFeed(w, r, "application/atom+xml; charset=utf-8")
}

func (s *Server) serveFeed(w http.ResponseWriter, r *http.Request, contentType string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	page, err := parsePageParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := parseOverrides(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.orch.Request(r.Context(), page, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", s.cacheMaxAgeS))
	w.Header().Set("Last-Modified", time.Now().UTC().Format(http.TimeFormat))
	w.Header().Set("ETag", etagFor(page, opts))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(entry.Body)
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	page, err := parsePageParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := parsePreviewLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := parsePage(r); err != nil {
		writeError(w, r, err)
		return
	}

	articles, _, err := s.orch.PreviewArticles(r.Context(), page, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, previewResponse{
		URL:      page.String(),
		Count:    len(articles),
		Articles: toArticleDTOs(articles),
	})
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	page, err := parsePageParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	outcome := s.orch.Discover(r.Context(), page)
	resp := metadataResponse{URL: page.String(), Domain: page.Host()}
	if outcome.IsFound() {
		feedURL, _ := outcome.FeedURL()
		resp.HasFeed = true
		resp.FeedURL = feedURL.String()
		resp.Strategy = outcome.StrategyUsed().String()
	}

	if articles, _, err := s.orch.PreviewArticles(r.Context(), page, 5); err == nil {
		resp.SampleArticleCount = len(articles)
		resp.SampleItems = toArticleDTOs(articles)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, apierr.Wrap(apierr.KindInvalidInput, "invalid json payload", err))
		return
	}

	page, err := feedtypes.ParsePageURL(strings.TrimSpace(req.URL))
	if err != nil {
		writeJSON(w, http.StatusOK, validateResponse{Reason: "invalid url"})
		return
	}

	resp := validateResponse{}
	outcome := s.orch.Discover(r.Context(), page)
	if outcome.IsFound() {
		feedURL, _ := outcome.FeedURL()
		resp.HasRSSFeed = true
		resp.RSSURL = feedURL.String()
		resp.Accessible = true
		resp.CanScrape = true
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if _, _, err := s.orch.PreviewArticles(r.Context(), page, 1); err != nil {
		resp.Accessible = false
		resp.Reason = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Accessible = true
	resp.CanScrape = true
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.orch.Stats())
}

func (s *Server) handleCacheDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}

	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		s.orch.ClearCache()
		w.WriteHeader(http.StatusNoContent)
		return
	}

	page, err := feedtypes.ParsePageURL(raw)
	if err != nil {
		writeError(w, r, apierr.Wrap(apierr.KindInvalidInput, "url is invalid", err))
		return
	}
	s.orch.InvalidateCache(page)
	w.WriteHeader(http.StatusNoContent)
}

// etagFor renders §6's cache validator as a strong ETag: the first 16 hex
// characters of sha256(url||canonicalOptions).
func etagFor(page feedtypes.PageURL, opts feedtypes.Overrides) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", page.String(), opts.Title, opts.Description, opts.Limit)
	sum := sha256.Sum256([]byte(payload))
	return `"` + hex.EncodeToString(sum[:])[:16] + `"`
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{
		Error:     true,
		Code:      string(apierr.KindInvalidInput),
		Message:   "method not allowed",
		RequestID: generateRequestID(),
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError maps a classified apierr.Error onto the status codes and
// body shape of §7, falling back to 500/internal for unclassified
// errors, and sets Retry-After when the origin circuit is open.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierr.Status(err)
	code := string(apierr.KindInternal)
	if e, ok := apierr.As(err); ok {
		code = string(e.Kind)
		if e.Kind == apierr.KindOriginBlocked && e.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(e.RetryAfter.Seconds())))
		}
	}
	writeJSON(w, status, errorResponse{
		Error:     true,
		Code:      code,
		Message:   err.Error(),
		RequestID: generateRequestID(),
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
	})
}

// generateRequestID produces a short random id for correlating a
// client-visible error with server logs (§7 "requestId").
func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("req-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
