package discovery

import "strings"

// ruleKind distinguishes the two domain-rule pattern shapes named in
// §4.B.
type ruleKind int

const (
	ruleFixed ruleKind = iota
	rulePathToRSS
)

// rulePattern is one entry in a domain's ordered pattern list.
type rulePattern struct {
	kind     ruleKind
	path     string // for ruleFixed: literal path appended to the origin.
	template string // for rulePathToRSS: template with a single "{s}" placeholder.
	fallback string // for rulePathToRSS: used when the request path has no segment.
}

// domainRules is the static per-registrable-domain pattern table
// (§4.B strategy 2), grounded on the teacher's per-domain site-profile
// table shape in internal/processor.
var domainRules = map[string][]rulePattern{
	"vnexpress.net": {
		{kind: rulePathToRSS, template: "/rss/{s}.rss", fallback: "/rss/tin-moi-nhat.rss"},
	},
	"techcrunch.com": {
		{kind: ruleFixed, path: "/feed/"},
	},
	"medium.com": {
		{kind: rulePathToRSS, template: "/feed/{s}", fallback: "/feed"},
	},
	"substack.com": {
		{kind: ruleFixed, path: "/feed"},
	},
}

// registrableDomain returns the registrable domain used to key both
// the domain-rule table and the site-profile table: host with a
// leading "www." stripped.
func registrableDomain(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, "www.")
}

// rulesFor returns the ordered pattern list for host, or nil when
// host has no table entry.
func rulesFor(host string) []rulePattern {
	return domainRules[registrableDomain(host)]
}
