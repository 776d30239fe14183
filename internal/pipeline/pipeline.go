// Package pipeline wires discovery, validation and page filtering into a
// single retrieval operation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/FranksOps/pdfsearch/internal/verify"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/FranksOps/pdfsearch/internal/pipeline"

// ErrInvalidRequest marks requests rejected before any network activity.
var ErrInvalidRequest = errors.New("pipeline: invalid request")

// Caller-facing messages.
const (
	MessageNoResults = "No PDFs found for the given keywords."
	MessageNoValid   = "No valid PDF links found after validation."
	messageFound     = "Found %d valid PDFs."
)

// Searcher runs discovery.
type Searcher interface {
	Discover(ctx context.Context, query string, limit int) ([]string, error)
}

// Validator confirms the declared content type of each link.
type Validator interface {
	Validate(ctx context.Context, links []string) []string
}

// Filter keeps links whose page count lies within bounds.
type Filter interface {
	Filter(ctx context.Context, links []string, bounds verify.Bounds) []string
}

// Request is one retrieval.
type Request struct {
	Query      string
	NumResults int
	Bounds     verify.Bounds
}

// Stats counts links surviving each stage.
type Stats struct {
	Discovered int           `json:"discovered"`
	Validated  int           `json:"validated"`
	Kept       int           `json:"kept"`
	Filtered   bool          `json:"filtered"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Response is the outcome of a retrieval. Links is never nil.
type Response struct {
	Links   []string `json:"links"`
	Message string   `json:"message"`
	Stats   Stats    `json:"-"`
}

// Config holds the stage implementations.
type Config struct {
	Searcher  Searcher
	Validator Validator
	Filter    Filter
	Logger    *slog.Logger
	// Tracer defaults to the global provider's tracer.
	Tracer trace.Tracer
}

// Pipeline orchestrates the three stages. Control flows strictly forward:
// each stage consumes the previous stage's output and never adds links.
type Pipeline struct {
	cfg Config
}

// New checks that every stage is present.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Searcher == nil {
		return nil, errors.New("pipeline: searcher is nil")
	}
	if cfg.Validator == nil {
		return nil, errors.New("pipeline: validator is nil")
	}
	if cfg.Filter == nil {
		return nil, errors.New("pipeline: filter is nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = otel.Tracer(tracerName)
	}
	return &Pipeline{cfg: cfg}, nil
}

// Run executes Discovery, Validation and, when req.Bounds is active,
// Attribute Filtering. Only a discovery failure is returned as an error;
// per-link failures simply shrink the result.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, fmt.Errorf("%w: query is empty", ErrInvalidRequest)
	}
	if req.NumResults <= 0 {
		return nil, fmt.Errorf("%w: num_results must be positive, got %d", ErrInvalidRequest, req.NumResults)
	}

	ctx, span := p.cfg.Tracer.Start(ctx, "pipeline.Run", trace.WithAttributes(
		attribute.String("pdfsearch.query", query),
		attribute.Int("pdfsearch.num_results", req.NumResults),
		attribute.String("pdfsearch.bounds", req.Bounds.String()),
	))
	defer span.End()

	start := time.Now()
	resp := &Response{Links: []string{}}
	defer func() {
		resp.Stats.Elapsed = time.Since(start)
	}()

	found, err := p.discover(ctx, query, req.NumResults)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "discovery failed")
		return nil, err
	}
	resp.Stats.Discovered = len(found)
	if len(found) == 0 {
		resp.Message = MessageNoResults
		return resp, nil
	}

	links := p.stage(ctx, "pipeline.Validate", len(found), func(ctx context.Context) []string {
		return p.cfg.Validator.Validate(ctx, found)
	})
	resp.Stats.Validated = len(links)
	if len(links) == 0 {
		resp.Message = MessageNoValid
		return resp, nil
	}

	if req.Bounds.Active() {
		resp.Stats.Filtered = true
		links = p.stage(ctx, "pipeline.Filter", len(links), func(ctx context.Context) []string {
			return p.cfg.Filter.Filter(ctx, links, req.Bounds)
		})
	}

	resp.Links = links
	resp.Stats.Kept = len(links)
	resp.Message = fmt.Sprintf(messageFound, len(links))

	span.SetAttributes(attribute.Int("pdfsearch.kept", len(links)))
	p.cfg.Logger.Info("search finished",
		"query", query,
		"discovered", resp.Stats.Discovered,
		"validated", resp.Stats.Validated,
		"kept", resp.Stats.Kept,
		"filtered", resp.Stats.Filtered,
	)
	return resp, nil
}

func (p *Pipeline) discover(ctx context.Context, query string, limit int) ([]string, error) {
	ctx, span := p.cfg.Tracer.Start(ctx, "pipeline.Discover")
	defer span.End()

	links, err := p.cfg.Searcher.Discover(ctx, query, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("pdfsearch.links.out", len(links)))
	return links, nil
}

func (p *Pipeline) stage(ctx context.Context, name string, in int, fn func(context.Context) []string) []string {
	ctx, span := p.cfg.Tracer.Start(ctx, name, trace.WithAttributes(attribute.Int("pdfsearch.links.in", in)))
	defer span.End()

	out := fn(ctx)
	span.SetAttributes(attribute.Int("pdfsearch.links.out", len(out)))
	return out
}
