package cas

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/core/ports"
)

const NodeID graft.ID = "adapter.artifact_cache"

func init() {
	graft.Register(graft.Node[ports.ArtifactCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.ArtifactCache, error) {
			return NewStore(), nil
		},
	})
}
