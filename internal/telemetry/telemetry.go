// Package telemetry installs the process-wide OpenTelemetry tracer provider.
package telemetry

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

type Config struct {
	ServiceName string
	// Endpoint is an OTLP/HTTP collector, as a URL or host:port. Empty
	// leaves the global no-op provider in place.
	Endpoint string
	Insecure bool
	// Exporter overrides the OTLP exporter, mainly for tests.
	Exporter sdktrace.SpanExporter
}

// Setup returns a shutdown func that flushes pending spans.
func Setup(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	exp := cfg.Exporter
	if exp == nil {
		endpoint := strings.TrimSpace(cfg.Endpoint)
		if endpoint == "" {
			return func(context.Context) error { return nil }, nil
		}
		var opts []otlptracehttp.Option
		if strings.Contains(endpoint, "://") {
			opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
		} else {
			opts = append(opts, otlptracehttp.WithEndpoint(endpoint))
		}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		var err error
		exp, err = otlptracehttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter: %w", err)
		}
	}
	name := cfg.ServiceName
	if name == "" {
		name = "agrichain-advisor"
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewSchemaless(attribute.String("service.name", name))),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
