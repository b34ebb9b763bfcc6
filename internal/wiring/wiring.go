// Package wiring registers all Graft nodes for the application.
package wiring

import (
	// Register adapter nodes.
	_ "go.trai.ch/ybt/internal/adapters/cas"
	_ "go.trai.ch/ybt/internal/adapters/config"
	_ "go.trai.ch/ybt/internal/adapters/docker"
	_ "go.trai.ch/ybt/internal/adapters/fs"
	_ "go.trai.ch/ybt/internal/adapters/git"
	_ "go.trai.ch/ybt/internal/adapters/layerdb"
	_ "go.trai.ch/ybt/internal/adapters/logger"
	_ "go.trai.ch/ybt/internal/adapters/metrics"
	_ "go.trai.ch/ybt/internal/adapters/shell"
	_ "go.trai.ch/ybt/internal/adapters/telemetry"
	// Register app and engine nodes.
	_ "go.trai.ch/ybt/internal/app"
	_ "go.trai.ch/ybt/internal/engine/cachekey"
	_ "go.trai.ch/ybt/internal/engine/environment"
	_ "go.trai.ch/ybt/internal/engine/scheduler"
	_ "go.trai.ch/ybt/internal/engine/testrunner"
)
