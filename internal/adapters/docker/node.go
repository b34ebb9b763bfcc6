package docker

import (
	"context"
	"os"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/shell"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
)

const (
	EngineNodeID   graft.ID = "adapter.docker.engine"
	ExecutorNodeID graft.ID = "adapter.docker.executor"
)

// BinaryEnv overrides the docker CLI binary.
const BinaryEnv = "YBT_DOCKER"

func init() {
	graft.Register(graft.Node[ports.ContainerEngine]{
		ID:        EngineNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (ports.ContainerEngine, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewEngine(os.Getenv(BinaryEnv), log), nil
		},
	})

	graft.Register(graft.Node[ports.Executor]{
		ID:        ExecutorNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{shell.NodeID, EngineNodeID},
		Run: func(ctx context.Context) (ports.Executor, error) {
			local, err := graft.Dep[*shell.Executor](ctx)
			if err != nil {
				return nil, err
			}
			engine, err := graft.Dep[ports.ContainerEngine](ctx)
			if err != nil {
				return nil, err
			}
			return NewExecutor(local, engine), nil
		},
	})
}
