package assembler

import (
	"bytes"
	"encoding/xml"
	"io"
	"time"

	"xfeed/internal/apierr"
	"xfeed/pkg/feedtypes"
)

// rewriteTargets are the elements Passthrough is permitted to mutate
// (§4.E "mutates only"). Matching is by local name among elements in
// no namespace or the Atom namespace: a non-namespaced foreign element
// sharing one of these local names collides and is rewritten too. That
// restriction is accepted, not resolved (§9 Open Question 2) — a
// namespace-qualified foreign element with the same local name is
// unaffected, since its xml.Name.Space differs.
var rewriteTargets = map[string]struct{}{
	"title":         {},
	"description":   {},
	"subtitle":      {},
	"lastBuildDate": {},
	"updated":       {},
	"generator":     {},
}

const selfLinkLocalName = "link"

const atomNamespace = "http://www.w3.org/2005/Atom"

// Passthrough rewrites only the channel/feed-level title,
// description, lastBuildDate/updated, generator, and self-reference
// link of an existing feed document (title and description only when
// the matching override is set), dropping items beyond
// overrides.Limit from the end and preserving every other token
// verbatim (§4.E mode 1).
func Passthrough(original []byte, overrides feedtypes.Overrides, now time.Time, generator string, selfLink feedtypes.FeedURL) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(original))
	var out bytes.Buffer
	enc := xml.NewEncoder(&out)

	depth := 0
	var elementStack []string
	itemCount := 0
	skippingItem := false
	var skipDepth int

	for {
		tok, err := dec.Token()
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, apierr.Wrap(apierr.KindParseFailure, "decode feed for passthrough", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			local := t.Name.Local
			elementStack = append(elementStack, local)

			if isItemElement(local) {
				itemCount++
				if overrides.HasLimit() && itemCount > overrides.Limit {
					skippingItem = true
					skipDepth = depth
					continue
				}
			}
			if skippingItem {
				continue
			}

			ownNamespace := t.Name.Space == "" || t.Name.Space == atomNamespace
			if _, rewrite := rewriteTargets[local]; rewrite && ownNamespace && isChannelLevel(elementStack) {
				written, err := emitRewritten(enc, t, local, overrides, now, generator, selfLink)
				if err != nil {
					return nil, err
				}
				if written {
					// consume and discard the element's own char-data/
					// sub-tokens; we already emitted its full replacement.
					if err := skipElementBody(dec); err != nil {
						return nil, apierr.Wrap(apierr.KindParseFailure, "skip rewritten element body", err)
					}
					depth--
					elementStack = elementStack[:len(elementStack)-1]
					continue
				}
			}

			if local == selfLinkLocalName && isAtomSelfLink(t) {
				if err := emitSelfLink(enc, t, selfLink); err != nil {
					return nil, err
				}
				if err := skipElementBody(dec); err != nil {
					return nil, apierr.Wrap(apierr.KindParseFailure, "skip self-link body", err)
				}
				depth--
				elementStack = elementStack[:len(elementStack)-1]
				continue
			}

			if err := enc.EncodeToken(t); err != nil {
				return nil, apierr.Wrap(apierr.KindInternal, "encode start element", err)
			}

		case xml.EndElement:
			if skippingItem {
				if depth == skipDepth {
					skippingItem = false
				}
				depth--
				if len(elementStack) > 0 {
					elementStack = elementStack[:len(elementStack)-1]
				}
				continue
			}
			depth--
			if len(elementStack) > 0 {
				elementStack = elementStack[:len(elementStack)-1]
			}
			if err := enc.EncodeToken(t); err != nil {
				return nil, apierr.Wrap(apierr.KindInternal, "encode end element", err)
			}

		default:
			if skippingItem {
				continue
			}
			if err := enc.EncodeToken(tok); err != nil {
				return nil, apierr.Wrap(apierr.KindInternal, "encode token", err)
			}
		}
	}

	if err := enc.Flush(); err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "flush passthrough encoder", err)
	}
	return out.Bytes(), nil
}

func isItemElement(local string) bool {
	return local == "item" || local == "entry"
}

// isChannelLevel reports whether the element at the top of the stack
// is a direct child of channel/feed, the only scope §4.E's rewrite
// targets apply to.
func isChannelLevel(stack []string) bool {
	if len(stack) < 2 {
		return false
	}
	parent := stack[len(stack)-2]
	return parent == "channel" || parent == "feed"
}

func isAtomSelfLink(t xml.StartElement) bool {
	var rel, href string
	for _, a := range t.Attr {
		switch a.Name.Local {
		case "rel":
			rel = a.Value
		case "href":
			href = a.Value
		}
	}
	return rel == "self" && href != ""
}

func emitRewritten(enc *xml.Encoder, t xml.StartElement, local string, overrides feedtypes.Overrides, now time.Time, generator string, selfLink feedtypes.FeedURL) (bool, error) {
	var value string
	switch local {
	case "title":
		if !overrides.HasTitle() {
			return false, nil // no override: the caller copies the original element verbatim.
		}
		value = overrides.Title
	case "subtitle", "description":
		if !overrides.HasDescription() {
			return false, nil
		}
		value = overrides.Description
	case "lastBuildDate":
		value = now.Format(time.RFC1123Z)
	case "updated":
		value = now.Format(time.RFC3339)
	case "generator":
		value = generator
	}
	if value == "" {
		return false, nil
	}
	if err := enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}}); err != nil {
		return false, apierr.Wrap(apierr.KindInternal, "encode rewritten start", err)
	}
	if err := enc.EncodeToken(xml.CharData([]byte(value))); err != nil {
		return false, apierr.Wrap(apierr.KindInternal, "encode rewritten chardata", err)
	}
	if err := enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}}); err != nil {
		return false, apierr.Wrap(apierr.KindInternal, "encode rewritten end", err)
	}
	return true, nil
}

func emitSelfLink(enc *xml.Encoder, t xml.StartElement, selfLink feedtypes.FeedURL) error {
	if selfLink.IsZero() {
		if err := enc.EncodeToken(t); err != nil {
			return err
		}
		return enc.EncodeToken(xml.EndElement{Name: t.Name})
	}
	attrs := make([]xml.Attr, 0, len(t.Attr))
	for _, a := range t.Attr {
		if a.Name.Local == "href" {
			attrs = append(attrs, xml.Attr{Name: a.Name, Value: selfLink.String()})
			continue
		}
		attrs = append(attrs, a)
	}
	start := xml.StartElement{Name: t.Name, Attr: attrs}
	if err := enc.EncodeToken(start); err != nil {
		return apierr.Wrap(apierr.KindInternal, "encode self-link start", err)
	}
	return enc.EncodeToken(xml.EndElement{Name: t.Name})
}

// skipElementBody consumes tokens up to and including the matching
// EndElement for the StartElement that was just read, discarding the
// original element's contents since its replacement was already
// written.
func skipElementBody(dec *xml.Decoder) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch tok.(type) {
		case xml.StartElement:
			depth++
		case xml.EndElement:
			depth--
		}
	}
	return nil
}
