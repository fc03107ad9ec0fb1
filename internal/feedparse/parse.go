// Package feedparse implements the native Feed Parser (§4.D): sniff
// RSS 2.0 vs Atom from the root element, decode with encoding/xml,
// and map onto the shared Article shape.
package feedparse

import (
	"bytes"
	"encoding/xml"
	"strings"
	"time"

	"xfeed/internal/apierr"
	"xfeed/pkg/feedtypes"
)

// Parse decodes body as RSS 2.0 or Atom and returns its Article list.
// A malformed or unrecognised document surfaces as ParseFailure; the
// Orchestrator is responsible for falling through to synthesis
// (§4.D, §4.G).
func Parse(body []byte) ([]feedtypes.Article, error) {
	if sniffRoot(body) == "feed" {
		return parseAtom(body)
	}
	return parseRSS(body)
}

// sniffRoot returns the lowercase local name of the document's root
// element, ignoring any XML prolog/BOM/whitespace, without doing a
// full decode.
func sniffRoot(body []byte) string {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		if start, ok := tok.(xml.StartElement); ok {
			return strings.ToLower(start.Name.Local)
		}
	}
}

func parseRSS(body []byte) ([]feedtypes.Article, error) {
	var doc rssDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, apierr.Wrap(apierr.KindParseFailure, "decode rss document", err)
	}
	if len(doc.Channel.Items) == 0 {
		return nil, apierr.New(apierr.KindParseFailure, "rss document has no items")
	}

	now := time.Now()
	articles := make([]feedtypes.Article, 0, len(doc.Channel.Items))
	for _, item := range doc.Channel.Items {
		article := feedtypes.Article{
			Title:       item.Title,
			Link:        item.Link,
			Description: item.Description,
			Author:      item.Author,
			GUID:        item.GUID,
			PublishedAt: parseFeedDate(item.PubDate, now),
		}
		if len(item.Category) > 0 {
			article.Category = item.Category[0]
		}
		if item.MediaThumbnail != nil {
			article.Image = item.MediaThumbnail.URL
		} else if item.MediaContent != nil {
			article.Image = item.MediaContent.URL
		} else if item.Enclosure != nil && strings.HasPrefix(item.Enclosure.Type, "image/") {
			article.Image = item.Enclosure.URL
		}
		articles = append(articles, article.Normalize(now))
	}
	return articles, nil
}

func parseAtom(body []byte) ([]feedtypes.Article, error) {
	var doc atomDocument
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, apierr.Wrap(apierr.KindParseFailure, "decode atom document", err)
	}
	if len(doc.Entries) == 0 {
		return nil, apierr.New(apierr.KindParseFailure, "atom document has no entries")
	}

	now := time.Now()
	articles := make([]feedtypes.Article, 0, len(doc.Entries))
	for _, entry := range doc.Entries {
		description := entry.Summary
		if description == "" {
			description = entry.Content
		}
		published := entry.Published
		if published == "" {
			published = entry.Updated
		}
		article := feedtypes.Article{
			Title:       entry.Title,
			Link:        entry.primaryLink(),
			Description: description,
			GUID:        entry.ID,
			PublishedAt: parseFeedDate(published, now),
		}
		if len(entry.Category) > 0 {
			article.Category = entry.Category[0].Term
		}
		articles = append(articles, article.Normalize(now))
	}
	return articles, nil
}

// rssDateLayouts covers RFC-822 (the RSS pubDate format) and its
// common two-digit-year and numeric-offset variants.
var rssDateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
}

func parseFeedDate(raw string, fallback time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t
	}
	for _, layout := range rssDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t
		}
	}
	return fallback
}
