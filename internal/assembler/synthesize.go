package assembler

import (
	"encoding/xml"
	"fmt"
	"time"

	"xfeed/internal/apierr"
	"xfeed/pkg/feedtypes"
)

// xmlDocHeader is emitted ahead of xml.Marshal's output, which never
// writes its own prolog.
const xmlDocHeader = `<?xml version="1.0" encoding="UTF-8"?>` + "\n"

// synthRSS is the hand-built document tree for the synthesis path
// (§4.E mode 2): namespace declarations for content/dc/atom/media are
// always present, since any namespaced child may be emitted per item.
type synthRSS struct {
	XMLName      xml.Name       `xml:"rss"`
	Version      string         `xml:"version,attr"`
	XMLNSContent string         `xml:"xmlns:content,attr"`
	XMLNSDC      string         `xml:"xmlns:dc,attr"`
	XMLNSAtom    string         `xml:"xmlns:atom,attr"`
	XMLNSMedia   string         `xml:"xmlns:media,attr"`
	Channel      synthChannel   `xml:"channel"`
}

type synthChannel struct {
	Title         string       `xml:"title"`
	Link          string       `xml:"link"`
	Description   string       `xml:"description"`
	Language      string       `xml:"language,omitempty"`
	Generator     string       `xml:"generator"`
	LastBuildDate string       `xml:"lastBuildDate"`
	TTL           int          `xml:"ttl"`
	AtomSelfLink  *synthAtomLink `xml:"atom:link,omitempty"`
	Categories    []string     `xml:"category,omitempty"`
	Items         []synthItem  `xml:"item"`
}

type synthAtomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type synthItem struct {
	Title          string           `xml:"title"`
	Description    cdataString      `xml:"description"`
	Link           string           `xml:"link"`
	GUID           synthGUID        `xml:"guid"`
	PubDate        string           `xml:"pubDate"`
	Author         string           `xml:"author,omitempty"`
	Category       string           `xml:"category,omitempty"`
	Enclosure      *synthEnclosure  `xml:"enclosure,omitempty"`
	MediaContent   *synthMediaRef   `xml:"media:content,omitempty"`
	MediaThumbnail *synthMediaRef   `xml:"media:thumbnail,omitempty"`
	ContentEncoded cdataString      `xml:"content:encoded,omitempty"`
	DCCreator      string           `xml:"dc:creator,omitempty"`
	DCSource       string           `xml:"dc:source,omitempty"`
	DCIdentifier   string           `xml:"dc:identifier,omitempty"`
}

type synthGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

type synthEnclosure struct {
	URL    string `xml:"url,attr"`
	Type   string `xml:"type,attr"`
	Length string `xml:"length,attr"`
}

type synthMediaRef struct {
	URL string `xml:"url,attr"`
}

// cdataString marshals its value wrapped in a CDATA section, since
// synthesized descriptions and content:encoded bodies may contain
// characters that would otherwise need escaping (§4.E "CDATA").
type cdataString string

func (c cdataString) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	if c == "" {
		return nil
	}
	// The ",cdata" field makes the encoder write a real CDATA section;
	// it also splits any "]]>" inside the payload so the section cannot
	// be terminated early by attacker-controlled article text.
	return e.EncodeElement(struct {
		Value string `xml:",cdata"`
	}{Value: string(c)}, start)
}

// Synthesize builds a self-contained RSS 2.0 document from envelope
// (§4.E mode 2). Output is deterministic for a fixed input tuple: the
// only wall-clock-derived field is lastBuildDate, which is taken from
// envelope.BuildTime rather than time.Now (§4.E "byte stability").
func Synthesize(envelope feedtypes.FeedEnvelope) ([]byte, error) {
	doc := synthRSS{
		Version:      "2.0",
		XMLNSContent: "http://purl.org/rss/1.0/modules/content/",
		XMLNSDC:      "http://purl.org/dc/elements/1.1/",
		XMLNSAtom:    "http://www.w3.org/2005/Atom",
		XMLNSMedia:   "http://search.yahoo.com/mrss/",
		Channel: synthChannel{
			Title:         envelope.Title,
			Link:          envelope.SiteLink,
			Description:   envelope.Description,
			Language:      envelope.Language,
			Generator:     envelope.Generator,
			LastBuildDate: envelope.BuildTime.Format(time.RFC1123Z),
			TTL:           envelope.TTLMinutes,
			Categories:    envelope.Categories,
		},
	}
	if envelope.SelfLink != "" {
		doc.Channel.AtomSelfLink = &synthAtomLink{
			Href: envelope.SelfLink,
			Rel:  "self",
			Type: "application/rss+xml",
		}
	}

	for i, article := range envelope.Items {
		guid := article.GUID
		if guid == "" {
			guid = fmt.Sprintf("%s#%d", article.Link, i)
		}
		item := synthItem{
			Title:       article.Title,
			Description: cdataString(article.Description),
			Link:        article.Link,
			GUID:        synthGUID{IsPermaLink: isPermaLinkValue(guid, article.Link), Value: guid},
			PubDate:     article.PublishedAt.Format(time.RFC1123Z),
			Author:      article.Author,
			Category:    article.Category,
			DCCreator:   article.Author,
			DCSource:    envelope.SiteLink,
			DCIdentifier: guid,
		}
		if article.Image != "" {
			item.Enclosure = &synthEnclosure{URL: article.Image, Type: "image/jpeg"}
			item.MediaContent = &synthMediaRef{URL: article.Image}
			item.MediaThumbnail = &synthMediaRef{URL: article.Image}
		}
		if article.Content != "" {
			item.ContentEncoded = cdataString(article.Content)
		}
		doc.Channel.Items = append(doc.Channel.Items, item)
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, apierr.Wrap(apierr.KindInternal, "marshal synthesized feed", err)
	}
	return append([]byte(xmlDocHeader), body...), nil
}

func isPermaLinkValue(guid, link string) string {
	if guid == link {
		return "true"
	}
	return "false"
}
