// Package extractor implements the Content Extractor (§4.C): turning
// a page's HTML into an ordered list of Article values when no feed
// could be discovered, built on goquery exactly as the teacher's
// HTML-cleaning pass was.
package extractor

import (
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"xfeed/internal/apierr"
	"xfeed/pkg/feedtypes"
)

// preCleanSelectors are removed from the document before candidate
// enumeration, regardless of profile (§4.C "pre-clean").
var preCleanSelectors = []string{"script", "style", "nav", "footer", "aside", ".ad", ".advertisement"}

const dedupMinChars = 50

// Options controls a single extraction call.
type Options struct {
	MaxArticles int
	Now         time.Time
}

// Extractor builds Article lists out of raw HTML.
type Extractor struct {
	logger *slog.Logger
}

// New constructs an Extractor.
func New(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract implements §4.C end to end: pre-clean, candidate
// enumeration with the 50-char dedup/2x-maxArticles early exit,
// per-candidate field extraction, post-validation, and a stable sort
// by publishedAt descending.
func (x *Extractor) Extract(html []byte, pageURL feedtypes.PageURL, opts Options) ([]feedtypes.Article, error) {
	if opts.MaxArticles <= 0 {
		opts.MaxArticles = 50
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(html)))
	if err != nil {
		return nil, apierr.Wrap(apierr.KindParseFailure, "parse html", err)
	}

	prof := profileFor(pageURL.Host())
	doc.Find(strings.Join(preCleanSelectors, ",")).Remove()
	for _, sel := range prof.RemoveSelectors {
		doc.Find(sel).Remove()
	}

	candidates := x.enumerateCandidates(doc, prof, opts.MaxArticles)

	seenLinks := make(map[string]struct{}, len(candidates))
	var articles []feedtypes.Article
	for _, candidate := range candidates {
		article, ok := x.extractFields(candidate, prof, pageURL, opts.Now)
		if !ok {
			continue
		}
		if _, dup := seenLinks[article.Link]; dup {
			continue
		}
		seenLinks[article.Link] = struct{}{}
		articles = append(articles, article)
	}

	if len(articles) == 0 {
		return nil, apierr.New(apierr.KindNoArticles, "no articles extracted from page")
	}

	feedtypes.SortByPublishedDescending(articles)
	if len(articles) > opts.MaxArticles {
		articles = articles[:opts.MaxArticles]
	}
	return articles, nil
}

// enumerateCandidates walks the profile's article selectors in order,
// deduplicating by trimmed node text and stopping once 2x maxArticles
// have been collected (§4.C "node selection").
func (x *Extractor) enumerateCandidates(doc *goquery.Document, prof profile, maxArticles int) []*goquery.Selection {
	limit := 2 * maxArticles
	seenText := make(map[string]struct{})
	var out []*goquery.Selection

	for _, sel := range prof.ArticleSelectors {
		doc.Find(sel).EachWithBreak(func(_ int, node *goquery.Selection) bool {
			if len(out) >= limit {
				return false
			}
			text := collapseWhitespace(strings.TrimSpace(node.Text()))
			if len(text) < dedupMinChars {
				return true
			}
			if _, dup := seenText[text]; dup {
				return true
			}
			seenText[text] = struct{}{}
			out = append(out, node)
			return true
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

func (x *Extractor) extractFields(candidate *goquery.Selection, prof profile, pageURL feedtypes.PageURL, now time.Time) (feedtypes.Article, bool) {
	title := extractTitle(candidate, prof.TitleSelectors)
	if len(title) < minTitleChars {
		return feedtypes.Article{}, false
	}

	link, ok := extractLink(candidate, prof.LinkSelectors, pageURL)
	if !ok {
		return feedtypes.Article{}, false
	}

	description := extractDescription(candidate, prof.DescriptionSelectors)
	if len(description) < 20 {
		return feedtypes.Article{}, false
	}

	article := feedtypes.Article{
		Title:       title,
		Link:        link.String(),
		Description: description,
		Author:      extractAuthor(candidate),
		Category:    extractCategory(candidate),
		Image:       extractImage(candidate, prof.ImageSelectors, pageURL),
		PublishedAt: extractDate(candidate, prof.DateSelectors, now),
	}
	return article.Normalize(now), true
}
