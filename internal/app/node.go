package app

import (
	"context"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/internal/adapters/cas"       //nolint:depguard // Wired in app layer
	"go.trai.ch/ybt/internal/adapters/config"    //nolint:depguard // Wired in app layer
	"go.trai.ch/ybt/internal/adapters/layerdb"   //nolint:depguard // Wired in app layer
	"go.trai.ch/ybt/internal/adapters/logger"    //nolint:depguard // Wired in app layer
	"go.trai.ch/ybt/internal/adapters/metrics"   //nolint:depguard // Wired in app layer
	"go.trai.ch/ybt/internal/adapters/telemetry" //nolint:depguard // Wired in app layer
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/ybt/internal/engine/cachekey"
	"go.trai.ch/ybt/internal/engine/environment"
	"go.trai.ch/ybt/internal/engine/scheduler"
)

const (
	// AppNodeID is the unique identifier for the main App Graft node.
	AppNodeID graft.ID = "app.main"
	// ComponentsNodeID is the unique identifier for the App components Graft node.
	ComponentsNodeID graft.ID = "app.components"
)

func init() {
	graft.Register(graft.Node[*App]{
		ID:        AppNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			config.NodeID,
			scheduler.NodeID,
			environment.NodeID,
			cachekey.NodeID,
			cas.NodeID,
			layerdb.NodeID,
			telemetry.TracerNodeID,
			logger.NodeID,
			metrics.NodeID,
		},
		Run: runAppNode,
	})

	graft.Register(graft.Node[*Components]{
		ID:        ComponentsNodeID,
		Cacheable: true,
		DependsOn: []graft.ID{
			AppNodeID,
			logger.NodeID,
			telemetry.SelectorNodeID,
			metrics.RecorderNodeID,
		},
		Run: runComponentsNode,
	})
}

func runAppNode(ctx context.Context) (*App, error) {
	loader, err := graft.Dep[ports.DeclarationLoader](ctx)
	if err != nil {
		return nil, err
	}

	sched, err := graft.Dep[*scheduler.Scheduler](ctx)
	if err != nil {
		return nil, err
	}

	envs, err := graft.Dep[*environment.Factory](ctx)
	if err != nil {
		return nil, err
	}

	keys, err := graft.Dep[*cachekey.Engine](ctx)
	if err != nil {
		return nil, err
	}

	artifacts, err := graft.Dep[ports.ArtifactCache](ctx)
	if err != nil {
		return nil, err
	}

	layers, err := graft.Dep[ports.LayerCache](ctx)
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

	return New(loader, sched, envs, keys, artifacts, layers, tracer, log, recorder), nil
}

func runComponentsNode(ctx context.Context) (*Components, error) {
	a, err := graft.Dep[*App](ctx)
	if err != nil {
		return nil, err
	}

	log, err := graft.Dep[ports.Logger](ctx)
	if err != nil {
		return nil, err
	}

	tracing, err := graft.Dep[*telemetry.Selector](ctx)
	if err != nil {
		return nil, err
	}

	recorder, err := graft.Dep[*metrics.Recorder](ctx)
	if err != nil {
		return nil, err
	}

	return NewComponents(a, log, tracing, recorder), nil
}
