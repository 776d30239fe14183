package verify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/FranksOps/pdfsearch/internal/metrics"
	"github.com/FranksOps/pdfsearch/internal/pdfdoc"
)

// DefaultFilterTimeout bounds each download.
const DefaultFilterTimeout = 15 * time.Second

// PageFilterConfig configures a PageFilter.
type PageFilterConfig struct {
	Session SessionConfig
	Format  Format
	Parser  pdfdoc.Parser
	// TempDir holds transient artifacts. Empty means os.TempDir().
	TempDir     string
	Concurrency int
	Logger      *slog.Logger
}

// PageFilter downloads each link and keeps those whose page count falls
// inside the requested bounds.
type PageFilter struct {
	cfg    PageFilterConfig
	logger *slog.Logger
}

// NewPageFilter fills defaults and checks the temp dir and session setup.
func NewPageFilter(cfg PageFilterConfig) (*PageFilter, error) {
	if cfg.Session.Timeout == 0 {
		cfg.Session.Timeout = DefaultFilterTimeout
	}
	if cfg.Format == (Format{}) {
		cfg.Format = PDF
	}
	if cfg.Parser == nil {
		cfg.Parser = pdfdoc.Ledongthuc{}
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	info, err := os.Stat(cfg.TempDir)
	if err != nil {
		return nil, fmt.Errorf("verify: temp dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("verify: temp dir %s is not a directory", cfg.TempDir)
	}

	s, err := newSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	s.close()
	return &PageFilter{cfg: cfg, logger: cfg.Logger}, nil
}

// Filter keeps the links whose page count lies within bounds. Inactive
// bounds return links unchanged without any network or disk activity.
// Every artifact is removed before its task returns.
func (f *PageFilter) Filter(ctx context.Context, links []string, bounds Bounds) []string {
	if !bounds.Active() {
		return links
	}
	if len(links) == 0 {
		return []string{}
	}

	s, err := newSession(f.cfg.Session)
	if err != nil {
		f.logger.Error("filter session setup failed", "err", err)
		return []string{}
	}
	defer s.close()

	kept := checkAll(ctx, metrics.StageFilter, links, f.cfg.Concurrency, f.logger, func(ctx context.Context, link string) (outcome, error) {
		resp, err := s.client.Get(ctx, link, s.header())
		if err != nil {
			return outcomeError, err
		}
		defer resp.Body.Close()

		if !success(resp.StatusCode) {
			return outcomeStatus, nil
		}

		art, err := newArtifact(f.cfg.TempDir, f.cfg.Format.Extension)
		if err != nil {
			return outcomeError, err
		}
		defer func() {
			if err := art.remove(); err != nil {
				f.logger.Warn("artifact cleanup failed", "path", art.path, "err", err)
			}
		}()

		n, err := art.fill(resp.Body)
		metrics.DownloadBytesTotal.Add(float64(n))
		if err != nil {
			return outcomeError, err
		}

		pages, err := f.cfg.Parser.PageCount(art.path)
		if err != nil {
			return outcomeParse, err
		}
		if !bounds.Contains(pages) {
			return outcomeOutOfRange, nil
		}
		return outcomeKept, nil
	})

	f.logger.Info("page filter finished", "candidates", len(links), "kept", len(kept), "bounds", bounds.String())
	return kept
}
