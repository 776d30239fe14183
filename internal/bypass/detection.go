package bypass

import (
	"bytes"
	"net/http"
	"strings"
)

// Response is the part of an HTTP exchange the detectors look at.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Detector reports whether res is a bot challenge or block page, and whose.
type Detector func(res *Response) (detected bool, source string)

// DefaultDetectors returns the detectors relevant to search result pages.
func DefaultDetectors() []Detector {
	return []Detector{
		detectDuckDuckGo,
		detectCloudflare,
	}
}

// Analyze runs res through detectors and returns the first hit.
func Analyze(res *Response, detectors []Detector) (bool, string) {
	if res == nil {
		return false, ""
	}
	for _, d := range detectors {
		if detected, source := d(res); detected {
			return true, source
		}
	}
	return false, ""
}

// detectDuckDuckGo recognises the anomaly page DuckDuckGo serves instead of
// results when it suspects automation. It usually arrives as a 202.
func detectDuckDuckGo(res *Response) (bool, string) {
	if bytes.Contains(res.Body, []byte("anomaly-modal")) ||
		bytes.Contains(res.Body, []byte("Unfortunately, bots use DuckDuckGo too")) {
		return true, "DuckDuckGo"
	}
	if res.StatusCode == http.StatusAccepted && bytes.Contains(res.Body, []byte("challenge-form")) {
		return true, "DuckDuckGo"
	}
	return false, ""
}

// detectCloudflare looks for common Cloudflare challenge/block signatures.
func detectCloudflare(res *Response) (bool, string) {
	if res.StatusCode != http.StatusForbidden && res.StatusCode != http.StatusServiceUnavailable {
		return false, ""
	}
	if strings.Contains(strings.ToLower(res.Header.Get("Server")), "cloudflare") {
		return true, "Cloudflare"
	}
	for _, sig := range []string{"cf-browser-verification", "cf-turnstile", "Attention Required! | Cloudflare"} {
		if bytes.Contains(res.Body, []byte(sig)) {
			return true, "Cloudflare"
		}
	}
	return false, ""
}
