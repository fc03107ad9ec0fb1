// Package feedtypes holds the value types shared across the feed
// reconstruction pipeline: page/feed URLs, articles, envelopes, and
// discovery outcomes.
package feedtypes

import (
	"fmt"
	"net/url"
	"strings"
)

// PageURL is an absolute http(s) URL the caller asked to generate a
// feed for, always kept in its normalized form.
type PageURL struct {
	raw *url.URL
}

// FeedURL is a PageURL believed to serve RSS 2.0 or Atom.
type FeedURL = PageURL

// ParsePageURL parses and normalizes a page URL per §3: lowercase
// host, trailing slash stripped except for root, fragment dropped,
// userinfo rejected.
func ParsePageURL(raw string) (PageURL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return PageURL{}, fmt.Errorf("parse url: %w", err)
	}
	if !u.IsAbs() {
		return PageURL{}, fmt.Errorf("url %q is not absolute", raw)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return PageURL{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.User != nil {
		return PageURL{}, fmt.Errorf("url must not carry userinfo")
	}
	if u.Host == "" {
		return PageURL{}, fmt.Errorf("url %q missing host", raw)
	}
	return PageURL{raw: normalizeURL(u)}.clone(), nil
}

// MustParsePageURL parses a page URL and panics on error; intended for
// table-driven tests and static strategy tables, never for request input.
func MustParsePageURL(raw string) PageURL {
	u, err := ParsePageURL(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func normalizeURL(u *url.URL) *url.URL {
	out := *u
	out.Scheme = strings.ToLower(out.Scheme)
	out.Host = strings.ToLower(out.Host)
	out.Fragment = ""
	out.RawFragment = ""
	out.User = nil
	if out.Path != "/" {
		out.Path = strings.TrimSuffix(out.Path, "/")
	}
	if out.Path == "" {
		out.Path = "/"
	}
	return &out
}

func (p PageURL) clone() PageURL {
	if p.raw == nil {
		return p
	}
	cp := *p.raw
	return PageURL{raw: &cp}
}

// String renders the normalized URL.
func (p PageURL) String() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.String()
}

// IsZero reports whether the PageURL was never set.
func (p PageURL) IsZero() bool {
	return p.raw == nil
}

// Host returns the lowercase hostname without port.
func (p PageURL) Host() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.Hostname()
}

// Port returns the URL's port, or "" when using the scheme default.
func (p PageURL) Port() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.Port()
}

// Scheme returns the lowercase URL scheme.
func (p PageURL) Scheme() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.Scheme
}

// Path returns the URL path, "/" at minimum.
func (p PageURL) Path() string {
	if p.raw == nil {
		return "/"
	}
	return p.raw.Path
}

// Query returns the raw query string, preserved for synthesized-feed
// cache-key derivation per §3.
func (p PageURL) Query() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.RawQuery
}

// Origin returns scheme://host[:port] with no path.
func (p PageURL) Origin() string {
	if p.raw == nil {
		return ""
	}
	return p.raw.Scheme + "://" + p.raw.Host
}

// FirstPathSegment returns the first non-empty path segment, used by
// the pathToRss and URL-pattern-inference discovery strategies.
func (p PageURL) FirstPathSegment() string {
	trimmed := strings.Trim(p.Path(), "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	return parts[0]
}

// IsRoot reports whether the path is the site root.
func (p PageURL) IsRoot() bool {
	return p.Path() == "/"
}

// Resolve resolves a possibly-relative href against this URL,
// returning a normalized absolute PageURL.
func (p PageURL) Resolve(href string) (PageURL, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return PageURL{}, fmt.Errorf("empty href")
	}
	if p.raw == nil {
		return PageURL{}, fmt.Errorf("base url is empty")
	}
	rel, err := url.Parse(href)
	if err != nil {
		return PageURL{}, fmt.Errorf("parse href: %w", err)
	}
	resolved := p.raw.ResolveReference(rel)
	if !resolved.IsAbs() {
		return PageURL{}, fmt.Errorf("resolved href %q is not absolute", href)
	}
	scheme := strings.ToLower(resolved.Scheme)
	if scheme != "http" && scheme != "https" {
		return PageURL{}, fmt.Errorf("unsupported scheme in resolved href %q", href)
	}
	return PageURL{raw: normalizeURL(resolved)}, nil
}

// URL returns a defensive copy of the underlying net/url.URL.
func (p PageURL) URL() *url.URL {
	if p.raw == nil {
		return nil
	}
	cp := *p.raw
	return &cp
}
