package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// Supported exporters.
const (
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// InitTracer installs the global tracer provider for the named exporter and
// returns its shutdown function. ExporterNone leaves the no-op provider in place.
func InitTracer(serviceName, exporterName string, logger *slog.Logger) (func(context.Context) error, error) {
	var exporter sdktrace.SpanExporter
	switch exporterName {
	case ExporterNone:
		logger.Info("tracing disabled")
		return func(context.Context) error { return nil }, nil
	case ExporterStdout, "":
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, err
		}
		exporter = exp
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporterName)
	}

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

	logger.Info("OpenTelemetry initialized", slog.String("service", serviceName), slog.String("exporter", ExporterStdout))

	return tp.Shutdown, nil
}
