package scheduler

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/cas"       //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/docker"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/metrics"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/ybt/internal/engine/cachekey"
	"go.trai.ch/ybt/internal/engine/testrunner"
)

// NodeID is the unique identifier for the scheduler Graft node.
const NodeID graft.ID = "engine.scheduler"

func init() {
	graft.Register(graft.Node[*Scheduler]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			docker.ExecutorNodeID,
			docker.EngineNodeID,
			cas.NodeID,
			cachekey.NodeID,
			testrunner.NodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
			metrics.NodeID,
		},
		Run: func(ctx context.Context) (*Scheduler, error) {
			executor, err := graft.Dep[ports.Executor](ctx)
			if err != nil {
				return nil, err
			}

			engine, err := graft.Dep[ports.ContainerEngine](ctx)
			if err != nil {
				return nil, err
			}

			cache, err := graft.Dep[ports.ArtifactCache](ctx)
			if err != nil {
				return nil, err
			}

			keys, err := graft.Dep[*cachekey.Engine](ctx)
			if err != nil {
				return nil, err
			}

			tests, err := graft.Dep[*testrunner.Runner](ctx)
			if err != nil {
				return nil, err
			}

			tracer, err := graft.Dep[ports.Tracer](ctx)
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

			return NewScheduler(executor, engine, cache, keys, tests, tracer, log, recorder), nil
		},
	})
}
