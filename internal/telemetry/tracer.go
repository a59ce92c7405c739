// Package telemetry wires OpenTelemetry tracing and Prometheus metrics.
package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// TracerOption configures InitTracer.
type TracerOption func(*tracerOptions)

type tracerOptions struct {
	writer io.Writer
}

// WithWriter sends exported spans to w instead of stderr.
func WithWriter(w io.Writer) TracerOption {
	return func(o *tracerOptions) {
		o.writer = w
	}
}

// InitTracer initializes OpenTelemetry tracing with a stdout exporter.
// The returned function flushes and stops the provider.
func InitTracer(serviceName string, logger *slog.Logger, opts ...TracerOption) (func(context.Context) error, error) {
	o := tracerOptions{writer: os.Stderr}
	for _, opt := range opts {
		opt(&o)
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(o.writer))
	if err != nil {
		return nil, err
	}

	// Create resource with service name
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(serviceName),
		),
	)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)

	otel.SetTracerProvider(tp)

	logger.Info("OpenTelemetry initialized", slog.String("service", serviceName))

	return tp.Shutdown, nil
}
