// Package observability sets up OpenTelemetry tracing.
package observability

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/FranksOps/pdfsearch/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

const defaultShutdownTimeout = 5 * time.Second

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// InitTracer installs a global tracer provider. When tracing is disabled
// the provider never samples, so instrumented code pays almost nothing.
func InitTracer(ctx context.Context, cfg config.TracingConfig) (*sdktrace.TracerProvider, ShutdownFunc, error) {
	if !cfg.Enabled {
		tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.NeverSample()))
		install(tp)
		return tp, shutdownFunc(tp), nil
	}

	exporter, err := newExporter(ctx, cfg.Endpoint)
	if err != nil {
		return nil, nil, fmt.Errorf("observability: failed to create OTLP trace exporter: %w", err)
	}

	tp, err := NewTracerProvider(ctx, cfg, exporter)
	if err != nil {
		return nil, nil, err
	}
	install(tp)
	return tp, shutdownFunc(tp), nil
}

// NewTracerProvider builds a provider that batches spans into exporter.
func NewTracerProvider(ctx context.Context, cfg config.TracingConfig, exporter sdktrace.SpanExporter) (*sdktrace.TracerProvider, error) {
	if exporter == nil {
		return nil, errors.New("observability: trace exporter cannot be nil when tracing is enabled")
	}

	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "pdfsearch"
	}
	res, err := resource.New(ctx,
		resource.WithFromEnv(),
		resource.WithProcess(),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(attribute.String("service.name", name)),
	)
	if err != nil {
		return nil, fmt.Errorf("observability: failed to build resource information: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sampler(cfg.SampleRatio)),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	), nil
}

func sampler(ratio float64) sdktrace.Sampler {
	switch {
	case ratio <= 0:
		return sdktrace.NeverSample()
	case ratio >= 1:
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
	}
}

func newExporter(ctx context.Context, endpoint string) (sdktrace.SpanExporter, error) {
	target, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid OTLP HTTP endpoint: %w", err)
	}

	options := []otlptracehttp.Option{otlptracehttp.WithEndpointURL(target)}
	if strings.HasPrefix(target, "http://") {
		options = append(options, otlptracehttp.WithInsecure())
	}
	return otlptracehttp.New(ctx, options...)
}

// normalizeEndpoint appends /v1/traces unless the path already ends with it.
func normalizeEndpoint(endpoint string) (string, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return "", errors.New("endpoint cannot be empty")
	}
	if !strings.Contains(endpoint, "://") {
		endpoint = "http://" + endpoint
	}

	parsed, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	if parsed.Host == "" {
		return "", errors.New("endpoint must include host")
	}

	const suffix = "/v1/traces"
	path := strings.TrimSuffix(parsed.Path, "/")
	if !strings.HasSuffix(path, suffix) {
		path += suffix
	}
	parsed.Path = path
	return parsed.String(), nil
}

func install(tp *sdktrace.TracerProvider) {
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
}

func shutdownFunc(tp *sdktrace.TracerProvider) ShutdownFunc {
	return func(ctx context.Context) error {
		if ctx == nil {
			ctx = context.Background()
		}
		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, defaultShutdownTimeout)
			defer cancel()
		}
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("observability: tracer provider shutdown: %w", err)
		}
		return nil
	}
}
