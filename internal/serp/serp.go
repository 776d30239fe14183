package serp

import (
	"context"
	"errors"
	"fmt"
)

// ErrChallenged is returned when the provider answers with a bot check
// instead of results.
var ErrChallenged = errors.New("serp: search provider served a challenge page")

// Result is one search hit. URL is the destination link.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// SafeSearch is the provider's content-safety level.
type SafeSearch string

const (
	SafeOff      SafeSearch = "off"
	SafeModerate SafeSearch = "moderate"
	SafeStrict   SafeSearch = "strict"
)

// ParseSafeSearch converts a config string. Empty means SafeModerate.
func ParseSafeSearch(s string) (SafeSearch, error) {
	switch SafeSearch(s) {
	case "":
		return SafeModerate, nil
	case SafeOff, SafeModerate, SafeStrict:
		return SafeSearch(s), nil
	}
	return "", fmt.Errorf("serp: unknown safe search level %q", s)
}

// Provider abstracts a search engine. Implementations may scrape, call an
// API, or anything else. limit caps the number of results returned and the
// returned order is the provider's ranking.
type Provider interface {
	Search(ctx context.Context, query string, safe SafeSearch, limit int) ([]Result, error)
}
