package telemetry

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/telemetry/progrock"
	"go.trai.ch/ybt/internal/core/ports"
)

const (
	// SelectorNodeID is the unique identifier for the tracer selector Graft node.
	SelectorNodeID graft.ID = "adapter.telemetry.selector"
	// TracerNodeID is the unique identifier for the Telemetry adapter Graft node.
	TracerNodeID graft.ID = "adapter.telemetry"

	instrumentationName = "go.trai.ch/ybt"
)

func init() {
	graft.Register(graft.Node[*Selector]{
		ID:        SelectorNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Selector, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewSelector(map[string]func() ports.Tracer{
				ModeOTel: func() ports.Tracer {
					return NewOTelTracer(instrumentationName, NewLogBridge(log))
				},
				ModeProgrock: func() ports.Tracer { return progrock.New() },
			}), nil
		},
	})

	graft.Register(graft.Node[ports.Tracer]{
		ID:        TracerNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{SelectorNodeID},
		Run: func(ctx context.Context) (ports.Tracer, error) {
			return graft.Dep[*Selector](ctx)
		},
	})
}
