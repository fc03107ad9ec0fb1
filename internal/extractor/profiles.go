package extractor

// profile is a per-registrable-domain selector bundle, mirroring the
// shape of the teacher's PreprocessConfig: lists of CSS selectors
// tried in priority order, with the earliest match winning.
type profile struct {
	ArticleSelectors     []string
	TitleSelectors       []string
	LinkSelectors        []string
	DescriptionSelectors []string
	ImageSelectors       []string
	DateSelectors        []string
	RemoveSelectors      []string
}

// defaultProfile is used for any domain without a table entry (§4.C).
var defaultProfile = profile{
	ArticleSelectors: []string{
		"article", ".post", ".entry", ".news-item", ".article-item",
		`[class*="post"]`, `[class*="article"]`,
	},
	TitleSelectors:       []string{"h1", "h2", "h3", ".title", ".headline"},
	LinkSelectors:        []string{"a"},
	DescriptionSelectors: []string{"p", ".summary", ".excerpt", ".description"},
	ImageSelectors:       []string{"img"},
	DateSelectors:        []string{"time", ".date", ".published", ".timestamp"},
}

// profiles is the per-domain override table (§4.C "site profiles").
// Missing fields inherit from defaultProfile at lookup time.
var profiles = map[string]profile{
	"techcrunch.com": {
		ArticleSelectors:     []string{"article.post-block"},
		TitleSelectors:       []string{"h2.post-block__title a", "h1"},
		LinkSelectors:        []string{"h2.post-block__title a"},
		DescriptionSelectors: []string{".post-block__content"},
		ImageSelectors:       []string{"img"},
		DateSelectors:        []string{"time"},
	},
	"vnexpress.net": {
		ArticleSelectors:     []string{"article.item-news"},
		TitleSelectors:       []string{"h3.title-news a", "h2.title-news a"},
		LinkSelectors:        []string{"h3.title-news a", "h2.title-news a"},
		DescriptionSelectors: []string{".description a"},
		ImageSelectors:       []string{"img"},
		DateSelectors:        []string{"span.time-public"},
		RemoveSelectors:      []string{".box-tinlienquanv2"},
	},
}

// profileFor returns the effective profile for host: a table entry
// with any empty field backfilled from defaultProfile, or
// defaultProfile itself when host has no entry.
func profileFor(host string) profile {
	p, ok := profiles[registrableDomain(host)]
	if !ok {
		return defaultProfile
	}
	return mergeWithDefault(p)
}

func mergeWithDefault(p profile) profile {
	fill := func(v []string, def []string) []string {
		if len(v) == 0 {
			return def
		}
		return v
	}
	return profile{
		ArticleSelectors:     fill(p.ArticleSelectors, defaultProfile.ArticleSelectors),
		TitleSelectors:       fill(p.TitleSelectors, defaultProfile.TitleSelectors),
		LinkSelectors:        fill(p.LinkSelectors, defaultProfile.LinkSelectors),
		DescriptionSelectors: fill(p.DescriptionSelectors, defaultProfile.DescriptionSelectors),
		ImageSelectors:       fill(p.ImageSelectors, defaultProfile.ImageSelectors),
		DateSelectors:        fill(p.DateSelectors, defaultProfile.DateSelectors),
		RemoveSelectors:      p.RemoveSelectors,
	}
}
