// Package ports defines the core interfaces for the application.
package ports

import (
	"context"
	"io"

	"go.trai.ch/ybt/internal/core/domain"
)

// Executor runs a single build or test step.
//
//go:generate go run go.uber.org/mock/mockgen -source=executor.go -destination=mocks/mock_executor.go -package=mocks
type Executor interface {
	// Execute runs spec to completion. A nil env runs the step on the host;
	// otherwise it runs inside env's image. Output is copied to out.
	//
	// A non-zero exit is returned as an error carrying "exit_code" metadata.
	Execute(ctx context.Context, env *domain.ResolvedEnvironment, spec domain.CommandSpec, out io.Writer) error
}
