package domain

import "time"

// LocatorKind tells how a cached output can be found again.
type LocatorKind string

const (
	LocatorNone  LocatorKind = "none"
	LocatorFiles LocatorKind = "files"
	LocatorImage LocatorKind = "image"
)

// CachedFile is one output file stored as a content-addressed blob.
type CachedFile struct {
	Path   string `json:"path"`
	Digest string `json:"digest"`
	Mode   uint32 `json:"mode,omitzero"`
}

// Locator points at the outputs of a cached build.
type Locator struct {
	Kind  LocatorKind  `json:"kind"`
	Files []CachedFile `json:"files,omitempty"`
	Image string       `json:"image,omitempty"`
}

// CacheEntry maps a cache key to the outputs of the build that produced it.
type CacheEntry struct {
	Key         string    `json:"key"`
	Target      string    `json:"target,omitzero"`
	Locator     Locator   `json:"locator"`
	ContentHash string    `json:"content_hash"`
	CreatedAt   time.Time `json:"created_at,omitzero"`
}

// SourceDigest is the content digest of one declared source file.
type SourceDigest struct {
	Path   string
	Digest string
}
