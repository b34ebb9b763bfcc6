package domain

import "path/filepath"

const (
	// YbtDirName is the name of the internal workspace directory.
	YbtDirName = ".ybt"

	// CacheDirName is the name of the cache directory.
	CacheDirName = "cache"

	// EntriesDirName holds one JSON file per artifact cache entry.
	EntriesDirName = "entries"

	// BlobsDirName holds content-addressed output files.
	BlobsDirName = "blobs"

	// LayerDBFile is the bbolt database of materialized environment layers.
	LayerDBFile = "layers.db"

	// DirPerm is the default permission for directories (rwxr-x---).
	DirPerm = 0o750

	// FilePerm is the default permission for files (rw-r--r--).
	FilePerm = 0o644

	// PrivateFilePerm is the default permission for private files (rw-------).
	PrivateFilePerm = 0o600
)

// DeclarationFiles are the names searched for, in order, when locating a workspace.
var DeclarationFiles = []string{"ybt.yaml", "ybt.yml", "ybt.hcl"}

// DefaultCachePath returns the cache directory relative to the workspace root.
// It joins .ybt and cache.
func DefaultCachePath() string {
	return filepath.Join(YbtDirName, CacheDirName)
}

// CachePath resolves the cache directory configured in settings against root.
func CachePath(root string, s Settings) string {
	dir := s.CacheDir
	if dir == "" {
		dir = DefaultCachePath()
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}
