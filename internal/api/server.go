// Package api exposes the search pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/FranksOps/pdfsearch/internal/metrics"
)

// Config holds the API server settings.
type Config struct {
	Addr              string
	AllowedOrigins    []string
	DefaultNumResults int
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
	// Metrics mounts the Prometheus handler at /metrics.
	Metrics bool
	Logger  *slog.Logger
}

// Server serves /api/search, /healthz and optionally /metrics.
type Server struct {
	cfg      Config
	searcher Searcher
	logger   *slog.Logger
}

// New returns a Server backed by searcher.
func New(searcher Searcher, cfg Config) (*Server, error) {
	if searcher == nil {
		return nil, errors.New("api: searcher is nil")
	}
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8000"
	}
	if cfg.DefaultNumResults <= 0 {
		cfg.DefaultNumResults = 10
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{cfg: cfg, searcher: searcher, logger: cfg.Logger}, nil
}

// Handler returns the routed handler wrapped in CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /api/search", &searchHandler{
		searcher:          s.searcher,
		defaultNumResults: s.cfg.DefaultNumResults,
		logger:            s.logger,
	})
	mux.HandleFunc("GET /healthz", healthz)
	if s.cfg.Metrics {
		mux.Handle("GET /metrics", metrics.Handler())
	}
	return logging(s.logger, cors(s.cfg.AllowedOrigins, mux))
}

// Run listens on cfg.Addr and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("api: listen %s: %w", s.cfg.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then shuts down gracefully,
// letting in-flight searches finish within ShutdownTimeout.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: s.cfg.ReadHeaderTimeout,
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("api server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("api: serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("api server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api: shutdown: %w", err)
	}
	return nil
}
