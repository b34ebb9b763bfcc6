package config

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/git"    //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/adapters/logger" //nolint:depguard // Wired in engine wiring
	"go.trai.ch/ybt/internal/core/ports"
)

const NodeID graft.ID = "adapter.config_loader"

func init() {
	graft.Register(graft.Node[ports.DeclarationLoader]{
		ID:        NodeID,
		Cacheable: true,
		DependsOn: []graft.ID{logger.NodeID, git.NodeID},
		Run: func(ctx context.Context) (ports.DeclarationLoader, error) {
			log, err := graft.Dep[ports.Logger](ctx)
			if err != nil {
				return nil, err
			}
			revisions, err := graft.Dep[ports.RevisionProvider](ctx)
			if err != nil {
				return nil, err
			}
			return NewLoader(log, revisions), nil
		},
	})
}
