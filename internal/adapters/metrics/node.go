package metrics

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/core/ports"
)

const (
	// RecorderNodeID provides the concrete *Recorder so callers can set its destination.
	RecorderNodeID graft.ID = "adapter.metrics.recorder"
	// NodeID is the unique identifier for the metrics Graft node.
	NodeID graft.ID = "adapter.metrics"
)

func init() {
	graft.Register(graft.Node[*Recorder]{
		ID:        RecorderNodeID,
		Cacheable: true,
		Run: func(context.Context) (*Recorder, error) {
			return New(), nil
		},
	})

	graft.Register(graft.Node[ports.Metrics]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{RecorderNodeID},
		Run: func(ctx context.Context) (ports.Metrics, error) {
			return graft.Dep[*Recorder](ctx)
		},
	})
}
