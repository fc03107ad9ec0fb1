package feedtypes

import "time"

// FeedEnvelope is the synthesis-path input to the Feed Assembler (§3,
// §4.E). It carries everything needed to emit a self-contained RSS
// 2.0 document: channel metadata plus the article list.
type FeedEnvelope struct {
	Title        string
	Description  string
	SiteLink     string
	SelfLink     string
	Language     string
	Categories   []string
	TTLMinutes   int
	Generator    string
	BuildTime    time.Time
	Items        []Article
}

// Overrides carries the caller-supplied feed metadata overrides
// applied during pass-through assembly (§4.E mode 1).
type Overrides struct {
	Title       string
	Description string
	Limit       int
}

// HasTitle reports whether a title override was requested.
func (o Overrides) HasTitle() bool { return o.Title != "" }

// HasDescription reports whether a description override was requested.
func (o Overrides) HasDescription() bool { return o.Description != "" }

// HasLimit reports whether a positive item-count limit was requested.
func (o Overrides) HasLimit() bool { return o.Limit > 0 }
