package ports

import "go.trai.ch/ybt/internal/core/domain"

// Hasher computes content digests of files.
//
//go:generate mockgen -destination=mocks/hasher_mock.go -package=mocks -source=hasher.go
type Hasher interface {
	// HashSources returns the content digest of every path, sorted by path.
	// Paths are reported relative to root.
	HashSources(paths []string, root string) ([]domain.SourceDigest, error)

	// HashFile returns the content digest of a single file.
	HashFile(path string) (string, error)
}
