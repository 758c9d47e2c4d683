// Package telemetry initializes the process-wide OpenTelemetry tracer
// provider and hands out its tracer. No component in this module
// starts spans from that tracer; metrics stay on Prometheus.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope every span in this module is
// recorded under.
const TracerName = "github.com/polyarb/polyarb"

// Config controls exporter endpoint and service identification.
type Config struct {
	Enabled        bool
	ServiceName    string
	ServiceVersion string
	OTLPEndpoint   string // host:port, e.g. "localhost:4318"
	Insecure       bool
}

// Provider wraps the SDK tracer provider and exposes the tracer used
// throughout the module.
type Provider struct {
	tp     *sdktrace.TracerProvider
	tracer trace.Tracer
}

// noopProvider satisfies Provider's surface without exporting
// anything, used when tracing is disabled.
func noopProvider() *Provider {
	return &Provider{tracer: otel.Tracer(TracerName)}
}

// New builds a TracerProvider exporting spans over OTLP/HTTP. When
// cfg.Enabled is false it returns a Provider backed by the global
// no-op tracer, so callers never need to branch on whether tracing is
// configured.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return noopProvider(), nil
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(cfg.OTLPEndpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("merge resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return &Provider{
		tp:     tp,
		tracer: tp.Tracer(TracerName),
	}, nil
}

// Tracer returns the tracer spans should be started from.
func (p *Provider) Tracer() trace.Tracer {
	return p.tracer
}

// Shutdown flushes and stops the exporter. Safe to call on a no-op
// Provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.tp == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := p.tp.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
