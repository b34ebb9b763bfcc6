// Package progrock records spans as vertexes on a progrock tape.
package progrock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/opencontainers/go-digest"
	"github.com/vito/progrock"
	"go.trai.ch/ybt/internal/core/ports"
)

// Tracer implements ports.Tracer with a progrock recorder.
type Tracer struct {
	w   progrock.Writer
	rec *progrock.Recorder
	seq atomic.Uint64
}

var _ ports.Tracer = (*Tracer)(nil)

// New creates a Tracer recording to an in-memory tape.
func New() *Tracer {
	return NewTracer(progrock.NewTape())
}

// NewTracer creates a Tracer recording to w.
func NewTracer(w progrock.Writer) *Tracer {
	return &Tracer{w: w, rec: progrock.NewRecorder(w)}
}

// Start opens a vertex named after the span.
func (t *Tracer) Start(ctx context.Context, name string, opts ...ports.SpanOption) (context.Context, ports.Span) {
	cfg := &ports.SpanConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var vopts []progrock.VertexOpt
	if cfg.Internal {
		vopts = append(vopts, progrock.Internal())
	}
	// Span names repeat across test attempts, so the digest carries a sequence number.
	d := digest.FromString(fmt.Sprintf("%s#%d", name, t.seq.Add(1)))
	return ctx, &Span{vertex: t.rec.Vertex(d, name, vopts...)}
}

// EmitPlan records the planned targets on an internal vertex.
func (t *Tracer) EmitPlan(_ context.Context, targets []string) {
	d := digest.FromString(fmt.Sprintf("plan#%d", t.seq.Add(1)))
	v := t.rec.Vertex(d, "plan", progrock.Internal())
	_, _ = fmt.Fprintln(v.Stdout(), strings.Join(targets, "\n"))
	v.Done(nil)
}

// Shutdown closes the underlying writer.
func (t *Tracer) Shutdown(context.Context) error {
	return t.w.Close()
}

// Span implements ports.Span over a progrock vertex.
type Span struct {
	vertex *progrock.VertexRecorder

	mu  sync.Mutex
	err error
}

// Write sends p to the vertex's stdout stream.
func (s *Span) Write(p []byte) (int, error) {
	return s.vertex.Stdout().Write(p)
}

// RecordError remembers err as the span's outcome.
func (s *Span) RecordError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// SetAttribute only understands the cached marker.
func (s *Span) SetAttribute(key string, value any) {
	if key != ports.AttrCached {
		return
	}
	if cached, ok := value.(bool); ok && cached {
		s.vertex.Cached()
	}
}

// End completes the vertex with the recorded error, if any.
func (s *Span) End() {
	s.mu.Lock()
	err := s.err
	s.mu.Unlock()
	s.vertex.Done(err)
}
