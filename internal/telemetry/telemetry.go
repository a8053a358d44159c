// Package telemetry installs the OpenTelemetry tracer provider of a run.
// Spans are exported as JSON lines to a trace file; without one the global
// no-op provider stays in place.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Config selects where spans go.
type Config struct {
	ServiceName    string
	ServiceVersion string
	RunID          string
	// TraceFile receives the exported spans. Empty disables tracing unless
	// Writer is set.
	TraceFile string
	// Writer overrides TraceFile.
	Writer io.Writer
}

// Init installs a tracer provider and returns its shutdown function, which
// flushes pending spans.
func Init(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	w := cfg.Writer
	var file *os.File
	if w == nil {
		if cfg.TraceFile == "" {
			return func(context.Context) error { return nil }, nil
		}
		f, err := os.Create(cfg.TraceFile)
		if err != nil {
			return nil, fmt.Errorf("create trace file: %w", err)
		}
		file = f
		w = f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		if file != nil {
			_ = file.Close()
		}
		return nil, fmt.Errorf("create exporter: %w", err)
	}

	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("run.id", cfg.RunID),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			err = errors.Join(err, file.Close())
		}
		return err
	}, nil
}
