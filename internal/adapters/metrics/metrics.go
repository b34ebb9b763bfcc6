// Package metrics records run statistics in a private Prometheus registry.
package metrics

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

const namespace = "ybt"

// Recorder implements ports.Metrics.
type Recorder struct {
	registry *prometheus.Registry

	planned       prometheus.Gauge
	targets       *prometheus.CounterVec
	targetSeconds *prometheus.HistogramVec
	layers        *prometheus.CounterVec
	attempts      *prometheus.CounterVec

	mu   sync.Mutex
	path string
}

var _ ports.Metrics = (*Recorder)(nil)

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		planned: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "planned_targets",
			Help:      "Number of targets planned for the last run",
		}),
		// Labels: state (built, cached, failed, skipped), kind
		targets: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "targets_total",
			Help:      "Finished targets by final state",
		}, []string{"state", "kind"}),
		targetSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "target_duration_seconds",
			Help:      "Wall time spent on each target",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"kind"}),
		layers: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "env_layers_total",
			Help:      "Environment layers by how they were satisfied",
		}, []string{"result"}),
		attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "test_attempts_total",
			Help:      "Test attempts by result",
		}, []string{"result"}),
	}
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// SetDestination makes Flush write a textfile to path. An empty path disables it.
func (r *Recorder) SetDestination(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.path = path
}

func (r *Recorder) RunPlanned(targets int) {
	r.planned.Set(float64(targets))
}

func (r *Recorder) TargetFinished(kind domain.TargetKind, state domain.TargetState, elapsed time.Duration) {
	r.targets.WithLabelValues(string(state), string(kind)).Inc()
	if state != domain.StateSkipped {
		r.targetSeconds.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
	}
}

func (r *Recorder) LayerResolved(result domain.LayerResult) {
	r.layers.WithLabelValues(string(result)).Inc()
}

func (r *Recorder) TestAttempt(passed bool) {
	result := "failed"
	if passed {
		result = "passed"
	}
	r.attempts.WithLabelValues(result).Inc()
}

// Flush writes every metric in the text exposition format.
func (r *Recorder) Flush() error {
	r.mu.Lock()
	path := r.path
	r.mu.Unlock()
	if path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create metrics directory"), "path", path)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write metrics"), "path", path)
	}
	return nil
}
