package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewWithoutExporterIsNoop(t *testing.T) {
	t.Parallel()

	provider, err := New(context.Background(), Config{})
	require.NoError(t, err)

	_, span := provider.Tracer().Start(context.Background(), "wallet.connect")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNewExportsSpans(t *testing.T) {
	t.Parallel()

	exporter := tracetest.NewInMemoryExporter()
	provider, err := New(context.Background(), Config{ServiceName: "mw-test", ServiceVersion: "1.2.3", Exporter: exporter})
	require.NoError(t, err)

	_, span := provider.Tracer().Start(context.Background(), "wallet.submit")
	span.End()

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "wallet.submit", spans[0].Name)

	var serviceName string
	for _, attr := range spans[0].Resource.Attributes() {
		if attr.Key == "service.name" {
			serviceName = attr.Value.AsString()
		}
	}
	assert.Equal(t, "mw-test", serviceName)
	require.NoError(t, provider.Shutdown(context.Background()))
}

func TestNilProviderIsSafe(t *testing.T) {
	t.Parallel()

	var provider *Provider
	assert.NotNil(t, provider.Tracer())
	assert.NoError(t, provider.Shutdown(context.Background()))
}
