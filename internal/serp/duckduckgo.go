package serp

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/pdfsearch/internal/bypass"
	"github.com/FranksOps/pdfsearch/pkg/httpclient"
	"github.com/FranksOps/pdfsearch/pkg/useragent"
	"github.com/PuerkitoBio/goquery"
)

const (
	// DefaultDuckDuckGoURL is the JavaScript-free results endpoint.
	DefaultDuckDuckGoURL = "https://html.duckduckgo.com/html/"
	defaultRegion        = "wt-wt"
	defaultMaxPages      = 5
	maxPageBytes         = 4 << 20
)

// DuckDuckGoConfig configures the DuckDuckGo HTML scraper.
type DuckDuckGoConfig struct {
	BaseURL string
	// Region is DuckDuckGo's kl parameter, e.g. "us-en". Default "wt-wt".
	Region string
	// MaxPages bounds how many result pages one Search may walk.
	MaxPages   int
	Client     *httpclient.Client
	UserAgents *useragent.Pool
	Logger     *slog.Logger
}

// DuckDuckGo implements Provider by scraping DuckDuckGo's HTML endpoint.
type DuckDuckGo struct {
	cfg DuckDuckGoConfig
}

// NewDuckDuckGo fills defaults and returns a provider. A nil Client gets a
// standard client with a 15s timeout.
func NewDuckDuckGo(cfg DuckDuckGoConfig) (*DuckDuckGo, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDuckDuckGoURL
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("serp: invalid base url: %w", err)
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = defaultMaxPages
	}
	if cfg.UserAgents == nil {
		cfg.UserAgents = useragent.NewPool(useragent.ModeFixed, nil)
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Client == nil {
		client, err := httpclient.New(httpclient.Config{Timeout: 15 * time.Second})
		if err != nil {
			return nil, fmt.Errorf("serp: %w", err)
		}
		cfg.Client = client
	}
	return &DuckDuckGo{cfg: cfg}, nil
}

// Search submits query and walks result pages until limit hits are
// collected, a page adds nothing new, or MaxPages is reached.
func (d *DuckDuckGo) Search(ctx context.Context, query string, safe SafeSearch, limit int) ([]Result, error) {
	if limit < 0 {
		return nil, fmt.Errorf("serp: limit cannot be negative: %d", limit)
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("serp: empty query")
	}
	if limit == 0 {
		return []Result{}, nil
	}

	form := url.Values{
		"q":  {query},
		"kl": {d.cfg.Region},
		"kp": {safeParam(safe)},
	}

	results := make([]Result, 0, limit)
	seen := make(map[string]struct{})

	for page := 0; page < d.cfg.MaxPages && len(results) < limit; page++ {
		doc, err := d.fetchPage(ctx, form)
		if err != nil {
			return nil, err
		}

		added := 0
		for _, r := range parseResults(doc) {
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			results = append(results, r)
			added++
			if len(results) == limit {
				break
			}
		}
		d.cfg.Logger.Debug("duckduckgo page parsed", "page", page, "added", added, "total", len(results))

		next := nextPageForm(doc)
		if added == 0 || next == nil {
			break
		}
		next.Set("kp", safeParam(safe))
		form = next
	}

	return results, nil
}

func (d *DuckDuckGo) fetchPage(ctx context.Context, form url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.cfg.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("serp: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", d.cfg.UserAgents.Next())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := d.cfg.Client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("serp: duckduckgo request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("serp: read duckduckgo response: %w", err)
	}

	if detected, src := bypass.Analyze(&bypass.Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, bypass.DefaultDetectors()); detected {
		return nil, fmt.Errorf("%w (%s, status %d)", ErrChallenged, src, resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("serp: duckduckgo returned HTTP %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("serp: parse duckduckgo html: %w", err)
	}
	return doc, nil
}

func parseResults(doc *goquery.Document) []Result {
	var out []Result
	doc.Find("div.result").Each(func(_ int, s *goquery.Selection) {
		if s.HasClass("result--ad") {
			return
		}
		a := s.Find("a.result__a").First()
		href, ok := a.Attr("href")
		if !ok {
			return
		}
		link := unwrapLink(href)
		if link == "" {
			return
		}
		out = append(out, Result{
			Title:   strings.TrimSpace(a.Text()),
			URL:     link,
			Snippet: strings.TrimSpace(s.Find(".result__snippet").First().Text()),
		})
	})
	return out
}

// unwrapLink turns DuckDuckGo's /l/?uddg= redirect into the destination and
// drops anything that is not an absolute http(s) link.
func unwrapLink(href string) string {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	if u.Path == "/l/" && (u.Host == "" || strings.HasSuffix(u.Host, "duckduckgo.com")) {
		target := u.Query().Get("uddg")
		if target == "" {
			return ""
		}
		return unwrapLink(target)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return u.String()
}

// nextPageForm returns the hidden inputs of the "Next" pagination form.
func nextPageForm(doc *goquery.Document) url.Values {
	var next url.Values
	doc.Find("div.nav-link form").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		if !strings.EqualFold(strings.TrimSpace(f.Find(`input[type="submit"]`).AttrOr("value", "")), "next") {
			return true
		}
		next = url.Values{}
		f.Find(`input[name]`).Each(func(_ int, in *goquery.Selection) {
			if in.AttrOr("type", "") == "submit" {
				return
			}
			next.Set(in.AttrOr("name", ""), in.AttrOr("value", ""))
		})
		return false
	})
	return next
}

func safeParam(s SafeSearch) string {
	switch s {
	case SafeStrict:
		return "1"
	case SafeOff:
		return "-2"
	default:
		return "-1"
	}
}
