package layerdb

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/core/ports"
)

const NodeID graft.ID = "adapter.layer_cache"

func init() {
	graft.Register(graft.Node[ports.LayerCache]{
		ID:        NodeID,
		Cacheable: true,
		Run: func(_ context.Context) (ports.LayerCache, error) {
			return NewStore(), nil
		},
	})
}
