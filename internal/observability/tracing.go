// Package observability exports traces over OTLP HTTP.
//
// Genkit instruments model and embedding calls with OpenTelemetry spans on
// its own tracer provider. This package registers an exporter on that
// provider, so ingestion and answer synthesis traces reach whatever
// collector the deployment runs (an OTEL collector, a vendor agent on
// localhost:4318, etc.). Without a configured endpoint the spans stay
// in-process and are dropped.
package observability

import (
	"context"
	"os"

	"github.com/firebase/genkit/go/core/tracing"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/campusmind/campusmind/internal/log"
)

// Config for trace export.
type Config struct {
	// Endpoint is the OTLP HTTP collector address as host:port.
	Endpoint string
	// Environment tags spans with the deployment environment.
	Environment string
	// ServiceName is the service name reported on every span.
	ServiceName string
}

// Setup registers an OTLP HTTP exporter on Genkit's tracer provider and
// returns a shutdown function that flushes pending spans. An exporter that
// cannot be built disables tracing with a warning rather than failing
// startup; the pipeline works the same without traces.
func Setup(ctx context.Context, cfg Config, logger log.Logger) (func(context.Context) error, error) {
	// Genkit's tracer provider reads service identity from the standard
	// OTEL environment variables.
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(cfg.Endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		logger.Warn("creating otlp exporter failed, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	tracing.TracerProvider().RegisterSpanProcessor(sdktrace.NewBatchSpanProcessor(exporter))
	logger.Info("tracing enabled",
		"endpoint", cfg.Endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment)

	return tracing.TracerProvider().Shutdown, nil
}
