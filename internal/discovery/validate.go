package discovery

import (
	"bytes"
	"context"

	"xfeed/internal/fetcher"
	"xfeed/pkg/feedtypes"
)

// feedMarkers are the lowercase substrings §4.B accepts as evidence
// that a candidate response body is actually a feed.
var feedMarkers = [][]byte{
	[]byte("<rss"),
	[]byte("<feed"),
	[]byte("<channel>"),
	[]byte(`xmlns="http://www.w3.org/2005/atom"`),
	[]byte("xmlns:atom="),
}

const minValidBodyBytes = 50

// looksLikeFeed implements the §4.B validity predicate: a body of at
// least 50 bytes whose lowercased content contains one of the feed
// markers.
func looksLikeFeed(body []byte) bool {
	if len(body) < minValidBodyBytes {
		return false
	}
	lower := bytes.ToLower(body)
	for _, marker := range feedMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// OriginFetcher is the subset of the Origin Fetcher the Discovery
// Engine depends on. Callers must pass discovery=true so these calls
// honor the stricter discovery rate gate (§4.A, §5).
type OriginFetcher interface {
	GetBody(ctx context.Context, target feedtypes.PageURL, discovery bool) (*fetcher.Response, error)
}
