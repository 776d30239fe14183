package main

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/FranksOps/pdfsearch/internal/config"
	"github.com/FranksOps/pdfsearch/internal/fingerprint"
	"github.com/FranksOps/pdfsearch/internal/metrics"
	"github.com/FranksOps/pdfsearch/internal/observability"
	"github.com/FranksOps/pdfsearch/internal/pdfdoc"
	"github.com/FranksOps/pdfsearch/internal/pipeline"
	"github.com/FranksOps/pdfsearch/internal/serp"
	"github.com/FranksOps/pdfsearch/internal/verify"
	"github.com/FranksOps/pdfsearch/pkg/httpclient"
	"github.com/FranksOps/pdfsearch/pkg/proxy"
	"github.com/FranksOps/pdfsearch/pkg/useragent"
)

// app owns everything a command needs to run searches.
type app struct {
	pipeline *pipeline.Pipeline
	search   *httpclient.Client
	metrics  *metrics.Server
	shutdown observability.ShutdownFunc
	logger   *slog.Logger
}

func newApp(ctx context.Context, c config.Config, logger *slog.Logger) (*app, error) {
	_, shutdown, err := observability.InitTracer(ctx, c.Tracing)
	if err != nil {
		return nil, err
	}

	p, searchClient, err := buildPipeline(c, logger)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	a := &app{
		pipeline: p,
		search:   searchClient,
		shutdown: shutdown,
		logger:   logger,
	}
	if c.Metrics.Addr != "" {
		a.metrics = metrics.Start(c.Metrics.Addr, logger)
	}
	return a, nil
}

func (a *app) close(ctx context.Context) {
	a.search.Close()
	if err := a.metrics.Stop(ctx); err != nil {
		a.logger.Warn("metrics server shutdown failed", "err", err)
	}
	if err := a.shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", "err", err)
	}
}

// buildPipeline wires the DuckDuckGo provider, the validator and the page
// filter from c. The returned client backs discovery and must be closed by
// the caller.
func buildPipeline(c config.Config, logger *slog.Logger) (*pipeline.Pipeline, *httpclient.Client, error) {
	mode, err := useragent.ParseMode(c.Transport.UserAgentMode)
	if err != nil {
		return nil, nil, err
	}
	agents := useragent.NewPool(mode, c.Transport.UserAgents)

	profile, err := fingerprint.ParseProfile(c.Transport.Fingerprint)
	if err != nil {
		return nil, nil, err
	}

	proxies, err := buildProxies(c.Transport)
	if err != nil {
		return nil, nil, err
	}

	// Discovery keeps certificate verification on; only the link checks
	// run with the relaxed transport.
	opts := fingerprint.Options{Profile: profile}
	if proxies != nil {
		opts.Proxy = proxy.FromContext
	}
	tr, err := fingerprint.Transport(opts)
	if err != nil {
		return nil, nil, err
	}
	var rt http.RoundTripper = tr
	if proxies != nil {
		rt = proxies.Transport(tr)
	}
	searchClient, err := httpclient.New(httpclient.Config{
		Timeout:      c.Search.Timeout,
		MaxRedirects: c.Transport.MaxRedirects,
		Transport:    rt,
	})
	if err != nil {
		return nil, nil, err
	}

	fail := func(err error) (*pipeline.Pipeline, *httpclient.Client, error) {
		searchClient.Close()
		return nil, nil, err
	}

	ddg, err := serp.NewDuckDuckGo(serp.DuckDuckGoConfig{
		BaseURL:    c.Search.BaseURL,
		Region:     c.Search.Region,
		MaxPages:   c.Search.MaxPages,
		Client:     searchClient,
		UserAgents: agents,
		Logger:     logger,
	})
	if err != nil {
		return fail(err)
	}

	safe, err := serp.ParseSafeSearch(c.Search.SafeSearch)
	if err != nil {
		return fail(err)
	}
	discoverer, err := pipeline.NewDiscoverer(pipeline.DiscovererConfig{
		Provider:   ddg,
		SafeSearch: safe,
		Logger:     logger,
	})
	if err != nil {
		return fail(err)
	}

	session := verify.SessionConfig{
		MaxRedirects:       c.Transport.MaxRedirects,
		Fingerprint:        profile,
		InsecureSkipVerify: c.Transport.InsecureSkipVerify,
		UserAgents:         agents,
		Proxies:            proxies,
	}

	validateSession := session
	validateSession.Timeout = c.Validate.Timeout
	validator, err := verify.NewValidator(verify.ValidatorConfig{
		Session:     validateSession,
		Concurrency: c.Validate.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return fail(err)
	}

	parser, err := pdfdoc.New(pdfdoc.Backend(c.Filter.Parser))
	if err != nil {
		return fail(err)
	}
	filterSession := session
	filterSession.Timeout = c.Filter.Timeout
	filter, err := verify.NewPageFilter(verify.PageFilterConfig{
		Session:     filterSession,
		Parser:      parser,
		TempDir:     c.Filter.TempDir,
		Concurrency: c.Filter.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return fail(err)
	}

	p, err := pipeline.New(pipeline.Config{
		Searcher:  discoverer,
		Validator: validator,
		Filter:    filter,
		Logger:    logger,
	})
	if err != nil {
		return fail(err)
	}
	return p, searchClient, nil
}

func buildProxies(tc config.TransportConfig) (*proxy.Pool, error) {
	if len(tc.Proxies) == 0 && tc.ProxyFile == "" {
		return nil, nil
	}
	pool := proxy.NewPool(proxy.Config{
		MaxFailures: tc.ProxyMaxFailures,
		Cooldown:    tc.ProxyCooldown,
	})
	if err := pool.Add(tc.Proxies...); err != nil {
		return nil, err
	}
	if tc.ProxyFile != "" {
		if err := pool.LoadFile(tc.ProxyFile); err != nil {
			return nil, err
		}
	}
	return pool, nil
}
