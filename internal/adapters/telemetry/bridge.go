package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.trai.ch/ybt/internal/core/ports"
)

// LogBridge is a span processor that reports finished spans to a logger.
// Spans carrying the internal attribute are dropped.
type LogBridge struct {
	logger ports.Logger
}

var _ sdktrace.SpanProcessor = (*LogBridge)(nil)

// NewLogBridge returns a LogBridge writing to logger.
func NewLogBridge(logger ports.Logger) *LogBridge {
	return &LogBridge{logger: logger}
}

// OnStart does nothing.
func (b *LogBridge) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

// OnEnd logs the span name, duration and outcome.
func (b *LogBridge) OnEnd(s sdktrace.ReadOnlySpan) {
	if b.logger == nil || !s.SpanContext().IsValid() {
		return
	}

	var cached bool
	for _, kv := range s.Attributes() {
		switch kv.Key {
		case attribute.Key(ports.AttrInternal):
			if kv.Value.AsBool() {
				return
			}
		case attribute.Key(ports.AttrCached):
			cached = kv.Value.AsBool()
		}
	}

	args := []any{"span", s.Name(), "duration", s.EndTime().Sub(s.StartTime())}
	if cached {
		args = append(args, "cached", true)
	}
	if s.Status().Code == codes.Error {
		desc := s.Status().Description
		if desc == "" {
			desc = "span failed"
		}
		b.logger.Error(errors.New(s.Name() + ": " + desc))
		return
	}
	b.logger.Debug("span finished", args...)
}

// ForceFlush does nothing.
func (b *LogBridge) ForceFlush(context.Context) error { return nil }

// Shutdown does nothing.
func (b *LogBridge) Shutdown(context.Context) error { return nil }
