package discovery

import (
	"context"
	"encoding/xml"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"xfeed/pkg/feedtypes"
)

// headLinkSelectors is tried in order; within a strategy the earliest
// selector wins (§4.B "tie-breaking").
var headLinkSelectors = []string{
	`link[type="application/rss+xml"]`,
	`link[type="application/atom+xml"]`,
	`link[rel="alternate"][type="application/rss+xml"]`,
	`link[rel="alternate"][type="application/atom+xml"]`,
	`link[rel="feed"]`,
}

// htmlHeadCandidates scans the page's already-fetched HTML for feed
// <link> tags (§4.B strategy 1).
func htmlHeadCandidates(page feedtypes.PageURL, body []byte) []feedtypes.FeedURL {
	if len(body) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}
	var out []feedtypes.FeedURL
	for _, sel := range headLinkSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			href, ok := node.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				return true
			}
			resolved, err := page.Resolve(href)
			if err != nil {
				return true
			}
			out = append(out, resolved)
			return true
		})
	}
	return out
}

// domainRuleCandidates applies the static per-domain pattern table
// (§4.B strategy 2).
func domainRuleCandidates(page feedtypes.PageURL) []feedtypes.FeedURL {
	rules := rulesFor(page.Host())
	if len(rules) == 0 {
		return nil
	}
	segment := page.FirstPathSegment()
	var out []feedtypes.FeedURL
	for _, r := range rules {
		var path string
		switch r.kind {
		case ruleFixed:
			path = r.path
		case rulePathToRSS:
			if segment == "" {
				path = r.fallback
			} else {
				path = strings.Replace(r.template, "{s}", segment, 1)
			}
		}
		if path == "" {
			continue
		}
		if u, err := page.Resolve(path); err == nil {
			out = append(out, u)
		}
	}
	return out
}

// urlPatternCandidates infers a feed URL from the page's path shape
// (§4.B strategy 3).
func urlPatternCandidates(page feedtypes.PageURL) []feedtypes.FeedURL {
	var out []feedtypes.FeedURL
	segment := page.FirstPathSegment()
	if page.IsRoot() {
		for _, p := range []string{"/rss/trang-chu.rss", "/rss"} {
			if u, err := page.Resolve(p); err == nil {
				out = append(out, u)
			}
		}
		return out
	}
	if segment != "" && !strings.Contains(strings.Trim(page.Path(), "/"), "/") {
		for _, p := range []string{"/rss/" + segment + ".rss", "/" + segment + "/feed"} {
			if u, err := page.Resolve(p); err == nil {
				out = append(out, u)
			}
		}
	}
	return out
}

// commonPathCandidates probes the short list of conventional feed
// paths (§4.B strategy 4).
func commonPathCandidates(page feedtypes.PageURL) []feedtypes.FeedURL {
	var out []feedtypes.FeedURL
	for _, p := range []string{"/rss", "/feed"} {
		if u, err := page.Resolve(p); err == nil {
			out = append(out, u)
		}
	}
	return out
}

// wordPressCandidates probes the WordPress {page}/feed convention
// (§4.B strategy 5).
func wordPressCandidates(page feedtypes.PageURL) []feedtypes.FeedURL {
	var out []feedtypes.FeedURL
	candidates := []string{strings.TrimSuffix(page.Path(), "/") + "/feed"}
	if !page.IsRoot() {
		candidates = append(candidates, "/feed")
	}
	for _, p := range candidates {
		if u, err := page.Resolve(p); err == nil {
			out = append(out, u)
		}
	}
	return out
}

// sitemapLoc is the minimal <urlset><url><loc> shape we need out of a
// sitemap document; everything else is ignored by the decoder.
type sitemapLoc struct {
	Locs []string `xml:"url>loc"`
}

// sitemapCandidates mines sitemap.xml for <loc> entries that look
// like feed links. Capability-gated off by default (§9 Open
// Question 1).
func sitemapCandidates(ctx context.Context, fetch OriginFetcher, page feedtypes.PageURL) []feedtypes.FeedURL {
	u, err := page.Resolve("/sitemap.xml")
	if err != nil {
		return nil
	}
	resp, err := fetch.GetBody(ctx, u, true)
	if err != nil || resp == nil {
		return nil
	}
	var doc sitemapLoc
	if err := xml.Unmarshal(resp.Body, &doc); err != nil {
		return nil
	}
	var out []feedtypes.FeedURL
	for _, loc := range doc.Locs {
		lower := strings.ToLower(loc)
		if !strings.Contains(lower, "rss") && !strings.Contains(lower, "feed") && !strings.Contains(lower, "atom") {
			continue
		}
		if candidate, err := feedtypes.ParsePageURL(loc); err == nil {
			out = append(out, candidate)
		}
	}
	return out
}

// robotsCandidates mines robots.txt for a Sitemap hint that might
// lead to a feed. Capability-gated off by default (§9 Open Q1).
func robotsCandidates(ctx context.Context, fetch OriginFetcher, page feedtypes.PageURL) []feedtypes.FeedURL {
	u, err := page.Resolve("/robots.txt")
	if err != nil {
		return nil
	}
	resp, err := fetch.GetBody(ctx, u, true)
	if err != nil || resp == nil {
		return nil
	}
	var out []feedtypes.FeedURL
	for _, line := range strings.Split(string(resp.Body), "\n") {
		line = strings.TrimSpace(line)
		lower := strings.ToLower(line)
		if !strings.HasPrefix(lower, "sitemap:") {
			continue
		}
		value := strings.TrimSpace(line[len("sitemap:"):])
		if feedURL, err := feedtypes.ParsePageURL(value); err == nil {
			out = append(out, feedURL)
		}
	}
	return out
}

// contentMiningCandidates heuristically mines page content for feed
// hints beyond <link> tags. Capability-gated off by default (§9 Open
// Question 1).
func contentMiningCandidates(page feedtypes.PageURL, body []byte) []feedtypes.FeedURL {
	if len(body) == 0 {
		return nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil
	}
	var out []feedtypes.FeedURL
	doc.Find(`a[href*="rss"], a[href*="feed"], a[href*="atom"]`).EachWithBreak(func(i int, node *goquery.Selection) bool {
		if i >= 10 {
			return false
		}
		href, ok := node.Attr("href")
		if !ok {
			return true
		}
		if u, err := page.Resolve(href); err == nil {
			out = append(out, u)
		}
		return true
	})
	return out
}
