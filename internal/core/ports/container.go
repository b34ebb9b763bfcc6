package ports

import (
	"context"
	"io"

	"go.trai.ch/ybt/internal/core/domain"
)

// ContainerEngine materializes and runs container images.
//
//go:generate go run go.uber.org/mock/mockgen -source=container.go -destination=mocks/mock_container.go -package=mocks
type ContainerEngine interface {
	// BuildLayer applies step on top of parent and tags the result.
	BuildLayer(ctx context.Context, parent string, step domain.SetupStep, tag string, out io.Writer) error
	// ImageExists reports whether ref is present locally.
	ImageExists(ctx context.Context, ref string) (bool, error)
	// RemoteExists reports whether ref can be pulled from its registry.
	RemoteExists(ctx context.Context, ref string) (bool, error)
	Pull(ctx context.Context, ref string) error
	Push(ctx context.Context, ref string) error
	Tag(ctx context.Context, src, dst string) error
	// Run executes spec inside image with the workspace mounted.
	Run(ctx context.Context, image string, spec domain.CommandSpec, out io.Writer) error
}
