package git

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/core/ports"
)

// NodeID is the unique identifier for the revision provider Graft node.
const NodeID graft.ID = "adapter.git"

func init() {
	graft.Register(graft.Node[ports.RevisionProvider]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{},
		Run: func(_ context.Context) (ports.RevisionProvider, error) {
			return NewProvider(), nil
		},
	})
}
