// Package tracing bootstraps an OpenTelemetry tracer provider for the
// proxy, exporting spans to stdout. It fills the role of the teacher's
// referenced (but unretrieved) tracer package, using the exporter family
// the rest of the retrieval pack wires for the same purpose.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "rlb"

// Init installs a global TracerProvider exporting to stdout and returns a
// shutdown func the caller must run before exit.
func Init(ctx context.Context) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName("rlb"),
	))
	if err != nil {
		return nil, err
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(provider)

	return provider.Shutdown, nil
}

// Tracer returns the proxy's named tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
