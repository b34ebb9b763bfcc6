package ports

import (
	"context"
	"io"
)

//go:generate mockgen -source=telemetry.go -destination=mocks/mock_telemetry.go -package=mocks

// Tracer is the entry point for creating spans.
type Tracer interface {
	// Start creates a new span.
	Start(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
	// EmitPlan signals the ordered set of targets planned for execution.
	EmitPlan(ctx context.Context, targets []string)
	// Shutdown flushes pending spans.
	Shutdown(ctx context.Context) error
}

// Span represents a unit of work. Writes are attached as log output.
type Span interface {
	io.Writer
	End()
	RecordError(err error)
	SetAttribute(key string, value any)
}

// Span attribute keys with a meaning shared by every tracer.
const (
	AttrCached   = "ybt.cached"
	AttrInternal = "ybt.internal"
)

// SpanConfig holds configuration for a starting span.
type SpanConfig struct {
	Internal bool
}

// SpanOption is a functional option for configuring a span.
type SpanOption func(*SpanConfig)

// WithInternal marks a span as bookkeeping that progress displays may hide.
func WithInternal() SpanOption {
	return func(c *SpanConfig) {
		c.Internal = true
	}
}
