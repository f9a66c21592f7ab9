package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Output destinations understood by Init besides a file path.
const (
	OutputStdout = "stdout"
	OutputStderr = "stderr"
)

// ShutdownFunc flushes pending spans and releases the exporter.
type ShutdownFunc func(context.Context) error

// Init builds a provider exporting to output and installs it globally.
// An empty output disables tracing and returns a no-op shutdown.
func Init(serviceName, serviceVersion, output string) (ShutdownFunc, error) {
	if output == "" {
		return func(context.Context) error { return nil }, nil
	}

	w, closeW, err := openOutput(output)
	if err != nil {
		return nil, err
	}

	tp, err := NewProvider(serviceName, serviceVersion, w)
	if err != nil {
		closeW()
		return nil, err
	}
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		defer closeW()
		return tp.Shutdown(ctx)
	}, nil
}

// NewProvider returns a tracer provider whose spans are written to w as
// JSON. Spans are exported synchronously as they end.
func NewProvider(serviceName, serviceVersion string, w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("create stdout exporter: %w", err)
	}

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
			attribute.String("service.version", serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	), nil
}

func openOutput(output string) (io.Writer, func(), error) {
	switch output {
	case OutputStdout:
		return os.Stdout, func() {}, nil
	case OutputStderr:
		return os.Stderr, func() {}, nil
	}
	f, err := os.Create(output)
	if err != nil {
		return nil, nil, fmt.Errorf("open trace output: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
