package progrock_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vprogrock "github.com/vito/progrock"
	"go.trai.ch/ybt/internal/adapters/telemetry/progrock"
	"go.trai.ch/ybt/internal/core/ports"
)

type countingWriter struct {
	mu      sync.Mutex
	updates int
	closed  bool
}

func (w *countingWriter) WriteStatus(*vprogrock.StatusUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.updates++
	return nil
}

func (w *countingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestTracer_RecordsSpans(t *testing.T) {
	w := &countingWriter{}
	tracer := progrock.NewTracer(w)
	ctx := context.Background()

	tracer.EmitPlan(ctx, []string{"lib", "app"})

	_, span := tracer.Start(ctx, "lib")
	_, err := span.Write([]byte("compiling\n"))
	require.NoError(t, err)
	span.SetAttribute(ports.AttrCached, true)
	span.SetAttribute("ybt.key", "abc")
	span.End()

	_, failing := tracer.Start(ctx, "app", ports.WithInternal())
	failing.RecordError(errors.New("boom"))
	failing.RecordError(errors.New("ignored"))
	failing.End()

	require.NoError(t, tracer.Shutdown(ctx))

	w.mu.Lock()
	defer w.mu.Unlock()
	assert.True(t, w.closed)
	assert.Positive(t, w.updates)
}

func TestNew(t *testing.T) {
	tracer := progrock.New()
	require.NotNil(t, tracer)

	ctx, span := tracer.Start(context.Background(), "task")
	assert.NotNil(t, ctx)
	span.End()
	assert.NoError(t, tracer.Shutdown(context.Background()))
}
