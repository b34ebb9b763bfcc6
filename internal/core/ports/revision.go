package ports

import "context"

// RevisionProvider reports the current source-control revision.
//
//go:generate mockgen -source=revision.go -destination=mocks/mock_revision.go -package=mocks
type RevisionProvider interface {
	// Revision returns an opaque identifier, or "" when root is not under version control.
	Revision(ctx context.Context, root string) (string, error)
}
