package ports

import (
	"context"

	"go.trai.ch/ybt/internal/core/domain"
)

// DeclarationLoader reads the workspace declaration file.
//
//go:generate go run go.uber.org/mock/mockgen -source=loader.go -destination=mocks/mock_loader.go -package=mocks
type DeclarationLoader interface {
	// Load discovers the declaration file starting at cwd and walking up.
	Load(ctx context.Context, cwd string) (*domain.Workspace, error)
}
