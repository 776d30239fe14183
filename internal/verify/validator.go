package verify

import (
	"context"
	"log/slog"
	"time"

	"github.com/FranksOps/pdfsearch/internal/metrics"
)

// DefaultValidateTimeout bounds each HEAD request.
const DefaultValidateTimeout = 10 * time.Second

// ValidatorConfig configures a Validator.
type ValidatorConfig struct {
	Session SessionConfig
	Format  Format
	// Concurrency caps in-flight requests. Zero checks every link at once.
	Concurrency int
	Logger      *slog.Logger
}

// Validator keeps the links whose server declares the target MIME type.
type Validator struct {
	cfg    ValidatorConfig
	logger *slog.Logger
}

// NewValidator fills defaults and checks that a session can be built from cfg.
func NewValidator(cfg ValidatorConfig) (*Validator, error) {
	if cfg.Session.Timeout == 0 {
		cfg.Session.Timeout = DefaultValidateTimeout
	}
	if cfg.Format == (Format{}) {
		cfg.Format = PDF
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s, err := newSession(cfg.Session)
	if err != nil {
		return nil, err
	}
	s.close()
	return &Validator{cfg: cfg, logger: cfg.Logger}, nil
}

// Validate issues a HEAD request per link, following redirects, and returns
// those answered with a 2xx status and a Content-Type equal to the MIME type.
// Output order is not significant.
func (v *Validator) Validate(ctx context.Context, links []string) []string {
	if len(links) == 0 {
		return []string{}
	}

	s, err := newSession(v.cfg.Session)
	if err != nil {
		v.logger.Error("validation session setup failed", "err", err)
		return []string{}
	}
	defer s.close()

	mime := v.cfg.Format.MIMEType
	kept := checkAll(ctx, metrics.StageValidate, links, v.cfg.Concurrency, v.logger, func(ctx context.Context, link string) (outcome, error) {
		resp, err := s.client.Head(ctx, link, s.header())
		if err != nil {
			return outcomeError, err
		}
		defer resp.Body.Close()

		if !success(resp.StatusCode) {
			return outcomeStatus, nil
		}
		if resp.Header.Get("Content-Type") != mime {
			return outcomeContentType, nil
		}
		return outcomeKept, nil
	})

	v.logger.Info("validation finished", "candidates", len(links), "kept", len(kept))
	return kept
}
