package resultcache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"xfeed/pkg/feedtypes"
)

// Key is the two-part cache key of §4.F/§3: a hash of the normalized
// page URL concatenated with a hash of the canonical options, so
// every entry for a given page can be located by prefix (clearByPage)
// without depending on options.
type Key struct {
	pageHash    string
	optionsHash string
}

// String renders the key as the value actually stored in the map.
func (k Key) String() string { return k.pageHash + k.optionsHash }

// PagePrefix returns the portion of the key derived purely from the
// page URL, used to implement clearByPage (§4.F "clear semantics").
func (k Key) PagePrefix() string { return k.pageHash }

// NewKey derives a cache key from a normalized page URL and its
// canonical options. §9 Open Question 3 settles on sha256 only; the
// legacy base64-of-URL form from earlier source revisions is not
// supported.
func NewKey(page feedtypes.PageURL, opts feedtypes.Overrides) Key {
	pageSum := sha256.Sum256([]byte(page.String()))
	optsSum := sha256.Sum256([]byte(canonicalOptions(opts)))
	return Key{
		pageHash:    hex.EncodeToString(pageSum[:])[:16],
		optionsHash: hex.EncodeToString(optsSum[:])[:8],
	}
}

// canonicalOptions serializes the cache-relevant option fields in a
// fixed order; any option outside this set does not perturb the key
// (§4.F "Key").
func canonicalOptions(opts feedtypes.Overrides) string {
	return fmt.Sprintf("title=%s&description=%s&limit=%s", opts.Title, opts.Description, strconv.Itoa(opts.Limit))
}
