package docker

import (
	"context"
	"io"

	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
)

var _ ports.Executor = (*Executor)(nil)

// Executor routes commands without an environment to the local executor and
// commands with one into a container of the environment image.
type Executor struct {
	local  ports.Executor
	engine ports.ContainerEngine
}

// NewExecutor creates a routing Executor.
func NewExecutor(local ports.Executor, engine ports.ContainerEngine) *Executor {
	return &Executor{local: local, engine: engine}
}

// Execute runs spec locally when env is nil and in env's image otherwise.
func (x *Executor) Execute(
	ctx context.Context,
	env *domain.ResolvedEnvironment,
	spec domain.CommandSpec,
	out io.Writer,
) error {
	if env == nil {
		return x.local.Execute(ctx, nil, spec, out)
	}
	return x.engine.Run(ctx, env.ImageRef, spec, out)
}
