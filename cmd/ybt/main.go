// Package main is the entry point for the ybt build orchestrator.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grindlemire/graft"
	"go.trai.ch/ybt/cmd/ybt/commands"
	"go.trai.ch/ybt/internal/app"
	"go.trai.ch/ybt/internal/core/domain"
	_ "go.trai.ch/ybt/internal/wiring"
)

// ComponentProvider is a function that returns the application components.
type ComponentProvider func(context.Context) (*app.Components, func(), error)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stderr, func(ctx context.Context) (*app.Components, func(), error) {
		c, _, err := graft.ExecuteFor[*app.Components](ctx)
		return c, func() {}, err
	}))
}

func run(
	ctx context.Context,
	args []string,
	stderr io.Writer,
	provider ComponentProvider,
) int {
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	components, cleanup, err := provider(ctx)
	if err != nil {
		// Logger is not available yet if initialization failed
		_, _ = fmt.Fprintln(stderr, "Error: "+err.Error())
		return 1
	}
	defer cleanup()

	cli := commands.New(components.App, components.Configure)
	cli.SetArgs(args)
	cli.SetOutput(os.Stdout, stderr)

	err = cli.Execute(ctx)
	if shutdownErr := components.Shutdown(context.WithoutCancel(ctx)); shutdownErr != nil {
		components.Logger.Warn("failed to flush traces", "error", shutdownErr)
	}
	if err != nil {
		// Build and test failures were already reported in the summary.
		if errors.Is(err, domain.ErrBuildExecutionFailed) || errors.Is(err, domain.ErrTestsFailed) {
			return 1
		}
		components.Logger.Error(err)
		return 1
	}
	return 0
}
