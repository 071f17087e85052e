// Package tracing wires a process-local otel tracer provider for
// kipd: one span per run (engine.Upload) and one child span per file
// pipeline (engine.processFile), exported to stdout for local
// development.
package tracing

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// NewProvider builds and installs a global TracerProvider that batches
// spans to w (os.Stdout in production, io.Discard in tests that don't
// care about the trace stream). Call Shutdown on the returned provider
// during graceful shutdown to flush the last batch.
func NewProvider(w io.Writer) (*sdktrace.TracerProvider, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Shutdown flushes pending spans and releases the provider's batcher
// goroutine. Safe to call with a nil provider.
func Shutdown(ctx context.Context, tp *sdktrace.TracerProvider) error {
	if tp == nil {
		return nil
	}
	return tp.Shutdown(ctx)
}
