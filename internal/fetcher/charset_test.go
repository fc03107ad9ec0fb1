package fetcher

import (
	"net/http"
	"testing"
)

func TestDetectCharsetFromHeader(t *testing.T) {
	h := http.Header{"Content-Type": []string{"text/html; charset=ISO-8859-1"}}
	if got := detectCharset(h, []byte("<html></html>")); got != "iso-8859-1" {
		t.Fatalf("expected iso-8859-1, got %q", got)
	}
}

func TestDetectCharsetFromMetaTag(t *testing.T) {
	body := []byte(`<html><head><meta charset="Shift_JIS"></head><body></body></html>`)
	if got := detectCharset(http.Header{}, body); got != "shift_jis" {
		t.Fatalf("expected shift_jis, got %q", got)
	}
}

func TestDetectCharsetDefaultsToUTF8(t *testing.T) {
	body := []byte(`<html><head><title>no charset here</title></head></html>`)
	if got := detectCharset(http.Header{}, body); got != "utf-8" {
		t.Fatalf("expected utf-8 default, got %q", got)
	}
}
