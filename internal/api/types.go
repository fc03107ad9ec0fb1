package api

import (
	"time"

	"xfeed/pkg/feedtypes"
)

// articleDTO is the JSON-facing projection of feedtypes.Article used
// by /preview and /metadata.
type articleDTO struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Author      string    `json:"author,omitempty"`
	Category    string    `json:"category,omitempty"`
	Image       string    `json:"image,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
	GUID        string    `json:"guid,omitempty"`
}

func toArticleDTO(a feedtypes.Article) articleDTO {
	return articleDTO{
		Title:       a.Title,
		Link:        a.Link,
		Description: a.Description,
		Author:      a.Author,
		Category:    a.Category,
		Image:       a.Image,
		PublishedAt: a.PublishedAt,
		GUID:        a.GUID,
	}
}

func toArticleDTOs(articles []feedtypes.Article) []articleDTO {
	out := make([]articleDTO, 0, len(articles))
	for _, a := range articles {
		out = append(out, toArticleDTO(a))
	}
	return out
}

// previewResponse is the body of GET /preview.
type previewResponse struct {
	URL      string       `json:"url"`
	Count    int          `json:"count"`
	Articles []articleDTO `json:"articles"`
}

// metadataResponse is the body of GET /metadata.
type metadataResponse struct {
	URL                string       `json:"url"`
	Domain             string       `json:"domain"`
	HasFeed            bool         `json:"hasFeed"`
	FeedURL            string       `json:"feedUrl,omitempty"`
	Strategy           string       `json:"strategy,omitempty"`
	SampleArticleCount int          `json:"sampleArticleCount"`
	SampleItems        []articleDTO `json:"sampleItems"`
}

// validateRequest is the body of POST /validate.
type validateRequest struct {
	URL string `json:"url"`
}

// validateResponse is the body of POST /validate's response (§6).
type validateResponse struct {
	Accessible bool   `json:"accessible"`
	CanScrape  bool   `json:"canScrape"`
	HasRSSFeed bool   `json:"hasRSSFeed"`
	RSSURL     string `json:"rssUrl,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// errorResponse is the JSON body for every non-2xx response (§7).
type errorResponse struct {
	Error     bool      `json:"error"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	RequestID string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	Path      string    `json:"path"`
}
