package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Stage labels.
const (
	StageValidate = "validate"
	StageFilter   = "filter"
)

var (
	SearchQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfsearch_search_queries_total",
			Help: "Search provider queries by outcome",
		},
		[]string{"status"},
	)

	SearchCandidatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfsearch_search_candidates_total",
			Help: "Links returned by discovery that matched the target extension",
		},
	)

	LinkChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdfsearch_link_checks_total",
			Help: "Per-link checks by stage and outcome",
		},
		[]string{"stage", "outcome"},
	)

	LinkCheckDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pdfsearch_link_check_duration_seconds",
			Help:    "Duration of per-link checks in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30},
		},
		[]string{"stage"},
	)

	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pdfsearch_download_bytes_total",
			Help: "Bytes written to transient artifacts",
		},
	)

	ArtifactsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pdfsearch_artifacts_active",
			Help: "Transient artifacts currently on disk",
		},
	)
)

// RecordSearch counts one discovery query.
func RecordSearch(err error, candidates int) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	SearchQueriesTotal.WithLabelValues(status).Inc()
	SearchCandidatesTotal.Add(float64(candidates))
}

// RecordCheck counts one per-link decision.
func RecordCheck(stage, outcome string, d time.Duration) {
	LinkChecksTotal.WithLabelValues(stage, outcome).Inc()
	LinkCheckDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server encapsulates a standalone HTTP server for Prometheus metrics.
type Server struct {
	srv *http.Server
}

// Start begins listening on addr and exposes /metrics.
func Start(addr string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "err", err)
		}
	}()

	return &Server{srv: srv}
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	if s == nil || s.srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("metrics: shutdown: %w", err)
	}
	return nil
}
