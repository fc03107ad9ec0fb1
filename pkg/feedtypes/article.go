package feedtypes

import (
	"strings"
	"time"
)

const (
	minTitleLength       = 10
	descriptionTruncate  = 300
	descriptionEllipsis  = "..."
)

// Article is an ordered syndication record extracted either from a
// native feed or synthesized from HTML (§3).
type Article struct {
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Category    string
	Image       string
	PublishedAt time.Time
	GUID        string
}

// Normalize enforces the §3 Article invariants: collapsed-whitespace
// title, GUID defaulting to link, description truncation, and a
// publish time fallback of "now" when unset.
func (a Article) Normalize(now time.Time) Article {
	a.Title = collapseWhitespace(a.Title)
	a.Description = truncateDescription(collapseWhitespace(a.Description))
	a.Link = strings.TrimSpace(a.Link)
	a.Author = strings.TrimSpace(a.Author)
	a.Category = strings.TrimSpace(a.Category)
	a.Image = strings.TrimSpace(a.Image)
	if strings.TrimSpace(a.GUID) == "" {
		a.GUID = a.Link
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = now
	}
	return a
}

// Valid reports whether the article satisfies the §3/§4.C
// post-validation predicate: title ≥10 chars, non-empty link.
func (a Article) Valid() bool {
	return len(a.Title) >= minTitleLength && a.Link != ""
}

func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

func truncateDescription(s string) string {
	if len(s) <= descriptionTruncate {
		return s
	}
	cut := descriptionTruncate - len(descriptionEllipsis)
	if cut < 0 {
		cut = 0
	}
	return strings.TrimSpace(s[:cut]) + descriptionEllipsis
}

// SortByPublishedDescending stable-sorts articles by PublishedAt
// descending, preserving relative order of equal timestamps (§4.C,
// §5 ordering guarantees).
func SortByPublishedDescending(articles []Article) {
	stableSortDescending(articles)
}

func stableSortDescending(articles []Article) {
	// insertion sort: stable, and the lists involved here are small
	// (bounded by maxArticlesPerFeed), so O(n^2) is not a concern.
	for i := 1; i < len(articles); i++ {
		j := i
		for j > 0 && articles[j-1].PublishedAt.Before(articles[j].PublishedAt) {
			articles[j-1], articles[j] = articles[j], articles[j-1]
			j--
		}
	}
}

// DedupeByLink removes articles sharing a Link with an
// earlier-seen article, keeping the first occurrence's position.
func DedupeByLink(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	out := make([]Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := seen[a.Link]; ok {
			continue
		}
		seen[a.Link] = struct{}{}
		out = append(out, a)
	}
	return out
}
