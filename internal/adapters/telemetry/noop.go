package telemetry

import (
	"context"

	"go.trai.ch/ybt/internal/core/ports"
)

// NoOpTracer discards every span.
type NoOpTracer struct{}

// NewNoOpTracer creates a new NoOpTracer.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// Start returns ctx unchanged and a span that discards everything.
func (t *NoOpTracer) Start(ctx context.Context, _ string, _ ...ports.SpanOption) (context.Context, ports.Span) {
	return ctx, NoOpSpan{}
}

// EmitPlan does nothing.
func (t *NoOpTracer) EmitPlan(context.Context, []string) {}

// Shutdown does nothing.
func (t *NoOpTracer) Shutdown(context.Context) error { return nil }

// NoOpSpan is a no-op implementation of ports.Span.
type NoOpSpan struct{}

func (NoOpSpan) End() {}
func (NoOpSpan) RecordError(error) {}
func (NoOpSpan) SetAttribute(string, any) {}

// Write reports p as written.
func (NoOpSpan) Write(p []byte) (int, error) {
	return len(p), nil
}
