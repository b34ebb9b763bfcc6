package cachekey

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/fs" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
)

// NodeID is the unique identifier for the cache key engine Graft node.
const NodeID graft.ID = "engine.cachekey"

func init() {
	graft.Register(graft.Node[*Engine]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{fs.ResolverNodeID, fs.HasherNodeID},
		Run: func(ctx context.Context) (*Engine, error) {
			resolver, err := graft.Dep[ports.InputResolver](ctx)
			if err != nil {
				return nil, err
			}
			hasher, err := graft.Dep[ports.Hasher](ctx)
			if err != nil {
				return nil, err
			}
			return New(resolver, hasher), nil
		},
	})
}
