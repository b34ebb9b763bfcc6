package environment

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/docker"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/layerdb"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/logger"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/metrics"   //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/telemetry" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
)

// NodeID is the unique identifier for the environment manager factory Graft node.
const NodeID graft.ID = "engine.environment"

func init() {
	graft.Register(graft.Node[*Factory]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			docker.EngineNodeID,
			layerdb.NodeID,
			logger.NodeID,
			telemetry.TracerNodeID,
			metrics.NodeID,
		},
		Run: func(ctx context.Context) (*Factory, error) {
			engine, err := graft.Dep[ports.ContainerEngine](ctx)
			if err != nil {
				return nil, err
			}
			layers, err := graft.Dep[ports.LayerCache](ctx)
			if err != nil {
				return nil, err
			}
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			tracer, err := graft.Dep[ports.Tracer](ctx)
			if err != nil {
				return nil, err
			}
			recorder, err := graft.Dep[ports.Metrics](ctx)
			if err != nil {
				return nil, err
			}
			return NewFactory(engine, layers, log, tracer, recorder), nil
		},
	})
}
