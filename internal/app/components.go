package app

import (
	"context"
	"io"

	"go.trai.ch/ybt/internal/adapters/logger"    //nolint:depguard // Configured by the CLI layer
	"go.trai.ch/ybt/internal/adapters/metrics"   //nolint:depguard // Configured by the CLI layer
	"go.trai.ch/ybt/internal/adapters/telemetry" //nolint:depguard // Configured by the CLI layer
	"go.trai.ch/ybt/internal/core/ports"
)

// Components contains all the initialized application components.
// This struct provides controlled access to components needed by the CLI layer.
type Components struct {
	App    *App
	Logger ports.Logger

	tracing *telemetry.Selector
	metrics *metrics.Recorder
}

// NewComponents creates a new Components struct from dependencies.
func NewComponents(a *App, log ports.Logger, tracing *telemetry.Selector, recorder *metrics.Recorder) *Components {
	return &Components{App: a, Logger: log, tracing: tracing, metrics: recorder}
}

// Settings are the process-wide switches set from global CLI flags.
type Settings struct {
	Verbose     bool
	JSONLogs    bool
	LogOutput   io.Writer
	Trace       string
	MetricsFile string
}

// Configure applies s to the logger, tracer and metrics recorder.
func (c *Components) Configure(s Settings) error {
	if l, ok := c.Logger.(*logger.Logger); ok {
		if s.LogOutput != nil {
			l.SetOutput(s.LogOutput)
		}
		l.SetJSON(s.JSONLogs)
		l.SetVerbose(s.Verbose)
	}
	if c.metrics != nil {
		c.metrics.SetDestination(s.MetricsFile)
	}
	if c.tracing != nil {
		return c.tracing.Use(s.Trace)
	}
	return nil
}

// Shutdown flushes the active tracer.
func (c *Components) Shutdown(ctx context.Context) error {
	if c.tracing == nil {
		return nil
	}
	return c.tracing.Shutdown(ctx)
}
