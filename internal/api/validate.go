package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"xfeed/internal/apierr"
	"xfeed/internal/fetcher"
	"xfeed/pkg/feedtypes"
)

const (
	maxTitleChars       = 100
	maxDescriptionChars = 500
	minLimit            = 1
	maxLimit            = 50
	defaultPreviewLimit = 20
)

// parsePageParam validates and normalizes the required url query
// parameter: absolute http(s), public host (§6, §7).
func parsePageParam(r *http.Request) (feedtypes.PageURL, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		return feedtypes.PageURL{}, apierr.New(apierr.KindInvalidInput, "url is required")
	}
	page, err := feedtypes.ParsePageURL(raw)
	if err != nil {
		return feedtypes.PageURL{}, apierr.Wrap(apierr.KindInvalidInput, "url is invalid", err)
	}
	if err := fetcher.CheckPublicHost(page); err != nil {
		return feedtypes.PageURL{}, apierr.Wrap(apierr.KindInvalidInput, "url host is not permitted", err)
	}
	return page, nil
}

// parseOverrides validates title/description/limit against §6's
// per-field bounds, returning a typed InvalidInput error on the first
// violation rather than a generic binder failure.
func parseOverrides(r *http.Request) (feedtypes.Overrides, error) {
	q := r.URL.Query()

	title := strings.TrimSpace(q.Get("title"))
	if utf8.RuneCountInString(title) > maxTitleChars {
		return feedtypes.Overrides{}, apierr.New(apierr.KindInvalidInput, fmt.Sprintf("title must be at most %d characters", maxTitleChars))
	}

	description := strings.TrimSpace(q.Get("description"))
	if utf8.RuneCountInString(description) > maxDescriptionChars {
		return feedtypes.Overrides{}, apierr.New(apierr.KindInvalidInput, fmt.Sprintf("description must be at most %d characters", maxDescriptionChars))
	}

	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return feedtypes.Overrides{}, apierr.New(apierr.KindInvalidInput, "limit must be an integer")
		}
		if n < minLimit || n > maxLimit {
			return feedtypes.Overrides{}, apierr.New(apierr.KindInvalidInput, fmt.Sprintf("limit must be between %d and %d", minLimit, maxLimit))
		}
		limit = n
	}

	return feedtypes.Overrides{Title: title, Description: description, Limit: limit}, nil
}

// parsePreviewLimit validates the limit query parameter for
// GET /preview, defaulting when absent rather than requiring it.
func parsePreviewLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return defaultPreviewLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < minLimit || n > maxLimit {
		return 0, apierr.New(apierr.KindInvalidInput, fmt.Sprintf("limit must be between %d and %d", minLimit, maxLimit))
	}
	return n, nil
}

// parsePage validates the page query parameter for GET /preview's
// pagination, defaulting to 1.
func parsePage(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("page"))
	if raw == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, apierr.New(apierr.KindInvalidInput, "page must be a positive integer")
	}
	return n, nil
}
