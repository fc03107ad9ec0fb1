package fetcher

import (
	"bytes"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html"
	xnetcharset "golang.org/x/net/html/charset"
)

// sniffWindow bounds how much of the body is scanned for a
// <meta charset> tag when the HTTP header omits one (§4.A "charset
// sniffing"): scanning the whole body would defeat the point of a
// cheap sniff on large pages.
const sniffWindow = 4096

// detectCharset resolves the body's character encoding from, in
// order, the Content-Type header's charset parameter, a <meta
// charset> tag (or BOM) within the first 4KiB, and finally a UTF-8
// default.
func detectCharset(header http.Header, body []byte) string {
	if _, params, err := mime.ParseMediaType(header.Get("Content-Type")); err == nil {
		if cs := strings.TrimSpace(params["charset"]); cs != "" {
			return strings.ToLower(cs)
		}
	}

	window := body
	if len(window) > sniffWindow {
		window = window[:sniffWindow]
	}

	if _, name, certain := xnetcharset.DetermineEncoding(window, ""); certain {
		return strings.ToLower(name)
	}
	if cs := metaCharsetTag(window); cs != "" {
		return cs
	}
	return "utf-8"
}

// metaCharsetTag walks the tokenized head of an HTML document
// looking for <meta charset="..."> or <meta http-equiv="Content-Type"
// content="...charset=...">, without building a full DOM. It is a
// fallback for the cases x/net/html/charset's own sniff isn't
// "certain" about.
func metaCharsetTag(window []byte) string {
	tok := html.NewTokenizer(bytes.NewReader(window))
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			return ""
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}
		name, _ := tok.TagName()
		if string(name) != "meta" {
			continue
		}
		attrs := tokenAttrs(tok)
		if cs := attrs["charset"]; cs != "" {
			return strings.ToLower(cs)
		}
		if strings.EqualFold(attrs["http-equiv"], "content-type") {
			if _, params, err := mime.ParseMediaType(attrs["content"]); err == nil {
				if cs := params["charset"]; cs != "" {
					return strings.ToLower(cs)
				}
			}
		}
	}
}

func tokenAttrs(tok *html.Tokenizer) map[string]string {
	out := map[string]string{}
	for {
		key, val, more := tok.TagAttr()
		if key != nil {
			out[strings.ToLower(string(key))] = string(val)
		}
		if !more {
			break
		}
	}
	return out
}
