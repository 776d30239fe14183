package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/FranksOps/pdfsearch/internal/metrics"
	"github.com/FranksOps/pdfsearch/internal/serp"
	"github.com/FranksOps/pdfsearch/internal/verify"
)

// DiscovererConfig configures a Discoverer.
type DiscovererConfig struct {
	Provider serp.Provider
	Format   verify.Format
	// SafeSearch defaults to serp.SafeModerate.
	SafeSearch serp.SafeSearch
	Logger     *slog.Logger
}

// Discoverer turns keywords into candidate links whose path carries the
// target extension. It never touches the candidates themselves.
type Discoverer struct {
	provider serp.Provider
	format   verify.Format
	safe     serp.SafeSearch
	logger   *slog.Logger
}

// NewDiscoverer returns a Discoverer backed by cfg.Provider.
func NewDiscoverer(cfg DiscovererConfig) (*Discoverer, error) {
	if cfg.Provider == nil {
		return nil, errors.New("pipeline: search provider is nil")
	}
	if cfg.Format == (verify.Format{}) {
		cfg.Format = verify.PDF
	}
	if cfg.SafeSearch == "" {
		cfg.SafeSearch = serp.SafeModerate
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Discoverer{
		provider: cfg.Provider,
		format:   cfg.Format,
		safe:     cfg.SafeSearch,
		logger:   cfg.Logger,
	}, nil
}

// Discover performs exactly one provider search and keeps the results whose
// URL path ends with the format extension, in provider order.
func (d *Discoverer) Discover(ctx context.Context, query string, limit int) ([]string, error) {
	q := query + " filetype:" + strings.TrimPrefix(d.format.Extension, ".")

	results, err := d.provider.Search(ctx, q, d.safe, limit)
	if err != nil {
		metrics.RecordSearch(err, 0)
		return nil, fmt.Errorf("pipeline: search: %w", err)
	}

	links := make([]string, 0, len(results))
	for _, r := range results {
		if d.matches(r.URL) {
			links = append(links, r.URL)
		}
	}
	metrics.RecordSearch(nil, len(links))

	d.logger.Info("discovery finished", "query", q, "results", len(results), "candidates", len(links))
	return links, nil
}

func (d *Discoverer) matches(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), strings.ToLower(d.format.Extension))
}
