package fs

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"

	"github.com/opencontainers/go-digest"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Hasher = (*Hasher)(nil)

// Hasher computes sha256 content digests of source files.
type Hasher struct{}

// NewHasher creates a new Hasher.
func NewHasher() *Hasher {
	return &Hasher{}
}

// HashFile returns the canonical digest of a file's content.
func (h *Hasher) HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // Path is controlled by caller
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to open file"), "path", path)
	}
	defer f.Close() //nolint:errcheck // Best effort close in defer

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", zerr.With(zerr.Wrap(err, "failed to hash file content"), "path", path)
	}
	return d.String(), nil
}

// HashSources hashes every path and reports it relative to root with forward
// slashes, so digests are stable across checkouts in different directories.
func (h *Hasher) HashSources(paths []string, root string) ([]domain.SourceDigest, error) {
	out := make([]domain.SourceDigest, 0, len(paths))
	for _, path := range paths {
		abs := path
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(root, path)
		}

		rel, err := filepath.Rel(root, abs)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to relativize path"), "path", abs)
		}

		d, err := h.HashFile(abs)
		if err != nil {
			return nil, err
		}
		out = append(out, domain.SourceDigest{Path: filepath.ToSlash(rel), Digest: d})
	}

	slices.SortFunc(out, func(a, b domain.SourceDigest) int {
		return cmp.Compare(a.Path, b.Path)
	})
	return out, nil
}
