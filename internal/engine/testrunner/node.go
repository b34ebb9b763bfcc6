package testrunner

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/docker"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/logger"  //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/metrics" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
)

// NodeID is the unique identifier for the test runner Graft node.
const NodeID graft.ID = "engine.testrunner"

func init() {
	graft.Register(graft.Node[*Runner]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{docker.ExecutorNodeID, logger.NodeID, metrics.NodeID},
		Run: func(ctx context.Context) (*Runner, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			recorder, err := graft.Dep[ports.Metrics](ctx)
			if err != nil {
				return nil, err
			}
			return New(executor, log, recorder), nil
		},
	})
}
