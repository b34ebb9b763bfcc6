package telemetry

import (
	"context"
	"sync"

	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

// Tracing modes accepted by Selector.Use.
const (
	ModeNone     = "none"
	ModeOTel     = "otel"
	ModeProgrock = "progrock"
)

// ErrUnknownMode is returned for a tracing mode with no factory.
var ErrUnknownMode = zerr.New("unknown trace mode")

// Selector is a ports.Tracer that delegates to the tracer picked by Use.
// It starts out with a NoOpTracer.
type Selector struct {
	mu        sync.RWMutex
	active    ports.Tracer
	factories map[string]func() ports.Tracer
}

var _ ports.Tracer = (*Selector)(nil)

// NewSelector creates a Selector over the given mode factories.
func NewSelector(factories map[string]func() ports.Tracer) *Selector {
	return &Selector{active: NewNoOpTracer(), factories: factories}
}

// Use switches to the tracer registered for mode.
// The empty mode and ModeNone select the no-op tracer.
func (s *Selector) Use(mode string) error {
	var next ports.Tracer
	switch mode {
	case "", ModeNone:
		next = NewNoOpTracer()
	default:
		factory, ok := s.factories[mode]
		if !ok {
			return zerr.With(zerr.Wrap(ErrUnknownMode, "cannot select tracer"), "mode", mode)
		}
		next = factory()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = next
	return nil
}

func (s *Selector) current() ports.Tracer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Start delegates to the active tracer.
func (s *Selector) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	return s.current().Start(ctx, name, opts...)
}

// EmitPlan delegates to the active tracer.
func (s *Selector) EmitPlan(ctx context.Context, targets []string) {
	s.current().EmitPlan(ctx, targets)
}

// Shutdown shuts the active tracer down.
func (s *Selector) Shutdown(ctx context.Context) error {
	return s.current().Shutdown(ctx)
}
