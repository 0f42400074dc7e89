// Package observability provides OpenTelemetry integration for distributed tracing.
//
// Traces are exported over OTLP HTTP to a local collector. Running a collector
// next to the CLI keeps the hot path off the network: the collector buffers,
// batches, and forwards spans while the CLI stays responsive.
//
// # Enable OTLP ingestion on your collector
//
// Any OTLP-compatible collector works. For the reference otel-collector, the
// receiver block looks like:
//
//	receivers:
//	  otlp:
//	    protocols:
//	      http:
//	        endpoint: "localhost:4318"
//
// # Verify the endpoint
//
//	curl -v http://localhost:4318/v1/traces
//
// # Configuration
//
// Config file (~/.parley/config.yaml):
//
//	telemetry:
//	  endpoint: "localhost:4318"
//	  environment: "dev"
//	  service_name: "parley"
//
// Tracing is disabled when the endpoint is empty; Setup then returns a no-op
// shutdown function and the CLI runs without an exporter.
package observability

import (
	"context"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config for OTLP trace export setup.
type Config struct {
	// Endpoint is the collector OTLP HTTP endpoint (default: localhost:4318)
	Endpoint string
	// Environment is the deployment environment (dev, staging, prod)
	Environment string
	// ServiceName is the service name reported on spans
	ServiceName string
	// APIKey is an optional collector API key sent as a request header
	APIKey string
}

// DefaultEndpoint is the default collector OTLP HTTP endpoint.
const DefaultEndpoint = "localhost:4318"

// Setup registers an OTLP HTTP exporter as the global TracerProvider.
// Traces are sent to the configured collector endpoint.
//
// Returns a shutdown function that flushes pending spans.
// If Endpoint is empty, uses DefaultEndpoint (localhost:4318).
func Setup(ctx context.Context, cfg Config) (shutdown func(context.Context) error, err error) {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	// Set OTEL_SERVICE_NAME / OTEL_RESOURCE_ATTRIBUTES so the SDK's default
	// resource detection picks them up; the service name then appears
	// correctly in the tracing backend
	if cfg.ServiceName != "" {
		_ = os.Setenv("OTEL_SERVICE_NAME", cfg.ServiceName)
	}
	if cfg.Environment != "" {
		_ = os.Setenv("OTEL_RESOURCE_ATTRIBUTES", "deployment.environment="+cfg.Environment)
	}

	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(), // localhost doesn't need TLS
	}
	if cfg.APIKey != "" {
		opts = append(opts, otlptracehttp.WithHeaders(map[string]string{"api-key": cfg.APIKey}))
	}

	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		slog.Warn("failed to create trace exporter, tracing disabled", "error", err)
		return func(context.Context) error { return nil }, nil
	}

	processor := sdktrace.NewBatchSpanProcessor(exporter)
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(processor))
	otel.SetTracerProvider(tp)

	slog.Debug("tracing enabled",
		"endpoint", endpoint,
		"service", cfg.ServiceName,
		"environment", cfg.Environment,
	)

	// Create a test span to verify the pipeline works
	tracer := tp.Tracer("parley-init")
	_, span := tracer.Start(ctx, "parley.init")
	span.End()

	return tp.Shutdown, nil
}
