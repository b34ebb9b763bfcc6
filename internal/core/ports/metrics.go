package ports

import (
	"time"

	"go.trai.ch/ybt/internal/core/domain"
)

// Metrics records run statistics.
//
//go:generate mockgen -source=metrics.go -destination=mocks/mock_metrics.go -package=mocks
type Metrics interface {
	RunPlanned(targets int)
	TargetFinished(kind domain.TargetKind, state domain.TargetState, elapsed time.Duration)
	LayerResolved(result domain.LayerResult)
	TestAttempt(passed bool)
	// Flush writes the collected metrics if a destination is configured.
	Flush() error
}
