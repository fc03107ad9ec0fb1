package assembler

import (
	"strings"
	"testing"
	"time"

	"xfeed/internal/feedparse"
	"xfeed/pkg/feedtypes"
)

const originalFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Old Title</title>
    <description>Old description</description>
    <link>https://example.com/</link>
    <lastBuildDate>Mon, 01 Jan 2020 00:00:00 +0000</lastBuildDate>
    <generator>Old Generator</generator>
    <item>
      <title>Item One</title>
      <link>https://example.com/1</link>
      <description>First</description>
      <pubDate>Mon, 01 Jan 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Item Two</title>
      <link>https://example.com/2</link>
      <description>Second</description>
      <pubDate>Tue, 02 Jan 2024 00:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Item Three</title>
      <link>https://example.com/3</link>
      <description>Third</description>
      <pubDate>Wed, 03 Jan 2024 00:00:00 +0000</pubDate>
    </item>
  </channel>
</rss>`

func TestPassthroughRewritesChannelOnly(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out, err := Passthrough([]byte(originalFeed), feedtypes.Overrides{Title: "New Title"}, now, "xfeed/1.0", feedtypes.FeedURL{})
	if err != nil {
		t.Fatalf("Passthrough: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "<title>New Title</title>") {
		t.Fatalf("expected rewritten channel title, got: %s", s)
	}
	if !strings.Contains(s, "Item One") {
		t.Fatalf("expected item titles preserved, got: %s", s)
	}
	if !strings.Contains(s, "xfeed/1.0") {
		t.Fatalf("expected generator rewritten, got: %s", s)
	}
}

func TestPassthroughDropsItemsBeyondLimit(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	out, err := Passthrough([]byte(originalFeed), feedtypes.Overrides{Limit: 2}, now, "xfeed/1.0", feedtypes.FeedURL{})
	if err != nil {
		t.Fatalf("Passthrough: %v", err)
	}
	s := string(out)
	if strings.Contains(s, "Item Three") {
		t.Fatalf("expected item beyond limit dropped, got: %s", s)
	}
	if !strings.Contains(s, "Item Two") {
		t.Fatalf("expected item within limit kept, got: %s", s)
	}
}

func TestPassthroughDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	a, err := Passthrough([]byte(originalFeed), feedtypes.Overrides{Title: "Fixed"}, now, "xfeed/1.0", feedtypes.FeedURL{})
	if err != nil {
		t.Fatalf("Passthrough: %v", err)
	}
	b, err := Passthrough([]byte(originalFeed), feedtypes.Overrides{Title: "Fixed"}, now, "xfeed/1.0", feedtypes.FeedURL{})
	if err != nil {
		t.Fatalf("Passthrough: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected byte-identical output for identical input")
	}
}

func TestSynthesizeRoundTripsThroughFeedParser(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	envelope := feedtypes.FeedEnvelope{
		Title:       "My Feed",
		Description: "My Description",
		SiteLink:    "https://example-blog.test/",
		SelfLink:    "https://xfeed.test/feed?url=https://example-blog.test/",
		Generator:   "xfeed/1.0",
		BuildTime:   now,
		Items: []feedtypes.Article{
			{Title: "A", Link: "https://example-blog.test/a", Description: "desc a", PublishedAt: now},
			{Title: "B", Link: "https://example-blog.test/b", Description: "desc b", PublishedAt: now.Add(-time.Hour)},
		},
	}

	out, err := Synthesize(envelope)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}

	articles, err := feedparse.Parse(out)
	if err != nil {
		t.Fatalf("re-parse synthesized feed: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles after round-trip, got %d", len(articles))
	}
	if articles[0].Link != "https://example-blog.test/a" {
		t.Fatalf("unexpected first link: %s", articles[0].Link)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	envelope := feedtypes.FeedEnvelope{
		Title: "My Feed", SiteLink: "https://example-blog.test/", BuildTime: now,
		Items: []feedtypes.Article{{Title: "A", Link: "https://example-blog.test/a", Description: "desc", PublishedAt: now}},
	}
	a, err := Synthesize(envelope)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	b, err := Synthesize(envelope)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("expected byte-identical output for identical input")
	}
}
