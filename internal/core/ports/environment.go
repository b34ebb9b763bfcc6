package ports

import (
	"context"

	"go.trai.ch/ybt/internal/core/domain"
)

// EnvironmentProvider resolves build environments for a single run.
//
//go:generate go run go.uber.org/mock/mockgen -source=environment.go -destination=mocks/mock_environment.go -package=mocks
type EnvironmentProvider interface {
	// Fingerprint returns the environment fingerprint without materializing it.
	Fingerprint(name string) (string, error)

	// Ensure materializes the environment, or returns the memoized result of an
	// earlier attempt in the same run. Failed setups are never retried.
	Ensure(ctx context.Context, name string) (*domain.ResolvedEnvironment, error)
}
