package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const InstrumentationName = "github.com/bnema/marketplace-wallet"

type Config struct {
	ServiceName    string
	ServiceVersion string
	// OTLPEndpoint is an http(s) collector URL. Empty disables export.
	OTLPEndpoint string
	// Exporter overrides OTLPEndpoint. Spans are exported synchronously.
	Exporter sdktrace.SpanExporter
}

// Provider owns the tracer provider for one process run.
type Provider struct {
	sdk    *sdktrace.TracerProvider
	tracer trace.Tracer
}

// New builds a provider. Without an exporter it hands out a no-op tracer.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	var option sdktrace.TracerProviderOption
	switch {
	case cfg.Exporter != nil:
		option = sdktrace.WithSyncer(cfg.Exporter)
	case strings.TrimSpace(cfg.OTLPEndpoint) != "":
		exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint))
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		option = sdktrace.WithBatcher(exporter)
	default:
		return &Provider{tracer: noop.NewTracerProvider().Tracer(InstrumentationName)}, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "mw"
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", serviceName),
		attribute.String("service.version", cfg.ServiceVersion),
	)

	sdk := sdktrace.NewTracerProvider(sdktrace.WithResource(res), option)
	return &Provider{sdk: sdk, tracer: sdk.Tracer(InstrumentationName)}, nil
}

func (p *Provider) Tracer() trace.Tracer {
	if p == nil || p.tracer == nil {
		return noop.NewTracerProvider().Tracer(InstrumentationName)
	}
	return p.tracer
}

// Shutdown flushes pending spans.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p == nil || p.sdk == nil {
		return nil
	}
	if err := p.sdk.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown tracer provider: %w", err)
	}
	return nil
}
