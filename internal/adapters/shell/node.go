package shell

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
)

// NodeID provides the concrete local executor. The docker adapter wraps it
// into the routing ports.Executor.
const NodeID graft.ID = "adapter.shell"

func init() {
	graft.Register(graft.Node[*Executor]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID},
		Run: func(ctx context.Context) (*Executor, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			return NewExecutor(log), nil
		},
	})
}
