package extractor

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"xfeed/pkg/feedtypes"
)

func registrableDomain(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}

const (
	minTitleChars       = 10
	minDescriptionChars = 30
	fallbackDescChars   = 200
)

// genericAuthorSelectors and genericCategorySelectors are tried when
// a candidate has no profile-specific author/category selector
// (§4.C "generic selectors").
var (
	genericAuthorSelectors   = []string{".author", ".byline", "[rel=author]"}
	genericCategorySelectors = []string{".category", ".tag", ".section"}
)

// permissiveDateLayouts is tried, in order, after an RFC-3339 parse
// fails (§4.C "locale-free permissive").
var permissiveDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"January 2, 2006",
}

// extractTitle returns the first selector whose text or title=
// attribute is at least minTitleChars long (§4.C).
func extractTitle(candidate *goquery.Selection, sels []string) string {
	for _, sel := range sels {
		node := candidate.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		if text := strings.TrimSpace(node.Text()); len(text) >= minTitleChars {
			return collapseWhitespace(text)
		}
		if attr, ok := node.Attr("title"); ok {
			if text := strings.TrimSpace(attr); len(text) >= minTitleChars {
				return collapseWhitespace(text)
			}
		}
	}
	return ""
}

// extractLink returns the first a[href] under the candidate's link
// selectors, resolved against pageURL.
func extractLink(candidate *goquery.Selection, sels []string, pageURL feedtypes.PageURL) (feedtypes.PageURL, bool) {
	for _, sel := range sels {
		node := candidate.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		href, ok := node.Attr("href")
		if !ok {
			href, ok = node.Find("a[href]").First().Attr("href")
		}
		if !ok || strings.TrimSpace(href) == "" {
			continue
		}
		resolved, err := pageURL.Resolve(href)
		if err != nil {
			continue
		}
		return resolved, true
	}
	return feedtypes.PageURL{}, false
}

// extractDescription returns the first selector yielding at least
// minDescriptionChars of stripped text, falling back to a truncated
// slice of the candidate's own text (§4.C).
func extractDescription(candidate *goquery.Selection, sels []string) string {
	for _, sel := range sels {
		text := collapseWhitespace(strings.TrimSpace(candidate.Find(sel).First().Text()))
		if len(text) >= minDescriptionChars {
			return text
		}
	}
	own := collapseWhitespace(strings.TrimSpace(candidate.Text()))
	if len(own) > fallbackDescChars {
		return own[:fallbackDescChars] + "..."
	}
	return own
}

// extractDate parses the candidate's date attribute/text, falling
// back to now when nothing parses (§4.C).
func extractDate(candidate *goquery.Selection, sels []string, now time.Time) time.Time {
	for _, sel := range sels {
		node := candidate.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		raw := firstNonEmpty(attrOrEmpty(node, "datetime"), attrOrEmpty(node, "data-time"), strings.TrimSpace(node.Text()))
		if raw == "" {
			continue
		}
		if t, ok := parseFlexibleDate(raw); ok {
			return t
		}
	}
	return now
}

func parseFlexibleDate(raw string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	for _, layout := range permissiveDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// extractImage returns the first src/data-src/data-lazy-src under the
// candidate's image selectors, resolved to absolute (§4.C).
func extractImage(candidate *goquery.Selection, sels []string, pageURL feedtypes.PageURL) string {
	for _, sel := range sels {
		node := candidate.Find(sel).First()
		if node.Length() == 0 {
			continue
		}
		raw := firstNonEmpty(attrOrEmpty(node, "src"), attrOrEmpty(node, "data-src"), attrOrEmpty(node, "data-lazy-src"))
		if raw == "" {
			continue
		}
		if resolved, err := pageURL.Resolve(raw); err == nil {
			return resolved.String()
		}
	}
	return ""
}

func extractAuthor(candidate *goquery.Selection) string {
	return extractGeneric(candidate, genericAuthorSelectors)
}

func extractCategory(candidate *goquery.Selection) string {
	return extractGeneric(candidate, genericCategorySelectors)
}

func extractGeneric(candidate *goquery.Selection, sels []string) string {
	for _, sel := range sels {
		text := collapseWhitespace(strings.TrimSpace(candidate.Find(sel).First().Text()))
		if text != "" {
			return text
		}
	}
	return ""
}

func attrOrEmpty(node *goquery.Selection, attr string) string {
	v, _ := node.Attr(attr)
	return strings.TrimSpace(v)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
