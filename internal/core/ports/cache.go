package ports

import (
	"context"

	"go.trai.ch/ybt/internal/core/domain"
)

// ArtifactCache stores build outputs keyed by cache key.
//
//go:generate go run go.uber.org/mock/mockgen -source=cache.go -destination=mocks/mock_cache.go -package=mocks
type ArtifactCache interface {
	// Get returns the verified entry for key, or nil, nil on a miss.
	Get(ctx context.Context, key string) (*domain.CacheEntry, error)
	// Put stores the outputs produced under root and records the entry.
	Put(ctx context.Context, key, target, root string, outputs []string) (*domain.CacheEntry, error)
	// PutImage records an image reference as the output for key.
	PutImage(ctx context.Context, key, target, ref string) (*domain.CacheEntry, error)
	// Restore writes missing or stale outputs of entry back under root.
	Restore(ctx context.Context, entry *domain.CacheEntry, root string) error
	// Invalidate drops the entry for key.
	Invalidate(ctx context.Context, key string) error
	// Lock takes the exclusive builder lock for key and returns its release.
	Lock(key string) (unlock func())
	// Open roots the cache at dir. It is called once before any other method.
	Open(dir string) error
}

// LayerCache persists materialized environment layers by fingerprint.
type LayerCache interface {
	// Get returns the layer for fingerprint, or nil, nil when unknown.
	Get(ctx context.Context, fingerprint string) (*domain.Layer, error)
	Put(ctx context.Context, layer domain.Layer) error
	Delete(ctx context.Context, fingerprint string) error
	// Open loads the index stored under dir.
	Open(dir string) error
	Close() error
}
