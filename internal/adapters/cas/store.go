// Package cas implements the content addressable artifact cache.
package cas

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/moby/locker"
	"github.com/opencontainers/go-digest"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.ArtifactCache = (*Store)(nil)

// Store keeps one JSON entry per cache key next to a directory of blobs named
// by their sha256 digest. Entries are indexed in memory once opened.
type Store struct {
	mu    sync.RWMutex
	dir   string
	index map[string]*domain.CacheEntry

	locks *locker.Locker
	now   func() time.Time
}

// NewStore creates an unopened Store.
func NewStore() *Store {
	return &Store{
		index: make(map[string]*domain.CacheEntry),
		locks: locker.New(),
		now:   time.Now,
	}
}

// Open roots the store at dir and loads every entry found there.
// Unreadable entries are removed.
func (s *Store) Open(dir string) error {
	dir = filepath.Clean(dir)
	for _, sub := range []string{domain.EntriesDirName, domain.BlobsDirName} {
		if err := os.MkdirAll(filepath.Join(dir, sub), domain.DirPerm); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", dir)
		}
	}

	files, err := filepath.Glob(filepath.Join(dir, domain.EntriesDirName, "*.json"))
	if err != nil {
		return zerr.Wrap(err, "failed to list cache entries")
	}

	index := make(map[string]*domain.CacheEntry, len(files))
	for _, f := range files {
		entry, err := readEntry(f)
		if err != nil {
			_ = os.Remove(f)
			continue
		}
		index[entry.Key] = entry
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dir = dir
	s.index = index
	return nil
}

func readEntry(path string) (*domain.CacheEntry, error) {
	//nolint:gosec // Path is constructed from the cache directory
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry domain.CacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	if entry.Key == "" {
		return nil, zerr.With(zerr.Wrap(domain.ErrCacheCorrupted, "entry has no key"), "path", path)
	}
	return &entry, nil
}

// Get returns the entry for key after checking its content hash and blobs.
// A corrupted entry is invalidated and reported as a miss.
func (s *Store) Get(ctx context.Context, key string) (*domain.CacheEntry, error) {
	s.mu.RLock()
	dir := s.dir
	entry, ok := s.index[key]
	s.mu.RUnlock()

	if dir == "" {
		return nil, domain.ErrCacheNotOpen
	}
	if !ok {
		return nil, nil
	}
	if err := s.verify(dir, entry); err != nil {
		if err := s.Invalidate(ctx, key); err != nil {
			return nil, err
		}
		return nil, nil
	}

	out := *entry
	return &out, nil
}

func (s *Store) verify(dir string, entry *domain.CacheEntry) error {
	if contentHash(entry.Locator) != entry.ContentHash {
		return domain.ErrCacheCorrupted
	}
	for _, f := range entry.Locator.Files {
		path, err := blobPath(dir, f.Digest)
		if err != nil {
			return err
		}
		if err := verifyBlob(path, f.Digest); err != nil {
			return err
		}
	}
	return nil
}

// verifyBlob re-digests the blob at path and compares it with dgst.
func verifyBlob(path, dgst string) error {
	d, err := digest.Parse(dgst)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheCorrupted, "invalid blob digest"), "digest", dgst)
	}

	//nolint:gosec // Path is a blob inside the cache directory
	f, err := os.Open(path)
	if err != nil {
		return zerr.With(zerr.Wrap(domain.ErrCacheCorrupted, "missing blob"), "digest", dgst)
	}
	defer func() { _ = f.Close() }()

	verifier := d.Verifier()
	if _, err := io.Copy(verifier, f); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to read blob"), "digest", dgst)
	}
	if !verifier.Verified() {
		return zerr.With(zerr.Wrap(domain.ErrCacheCorrupted, "blob digest mismatch"), "digest", dgst)
	}
	return nil
}

// Put copies the outputs found under root into the blob store and records
// them under key. Directories are stored file by file.
func (s *Store) Put(_ context.Context, key, target, root string, outputs []string) (*domain.CacheEntry, error) {
	dir, err := s.openDir()
	if err != nil {
		return nil, err
	}

	files, err := collectOutputs(root, outputs)
	if err != nil {
		return nil, zerr.With(err, "target", target)
	}

	cached := make([]domain.CachedFile, 0, len(files))
	for _, rel := range files {
		f, err := storeBlob(dir, filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return nil, zerr.With(zerr.With(err, "target", target), "path", rel)
		}
		f.Path = rel
		cached = append(cached, f)
	}

	locator := domain.Locator{Kind: domain.LocatorNone}
	if len(cached) > 0 {
		locator = domain.Locator{Kind: domain.LocatorFiles, Files: cached}
	}
	return s.record(dir, key, target, locator)
}

// PutImage records ref as the output of key.
func (s *Store) PutImage(_ context.Context, key, target, ref string) (*domain.CacheEntry, error) {
	dir, err := s.openDir()
	if err != nil {
		return nil, err
	}
	return s.record(dir, key, target, domain.Locator{Kind: domain.LocatorImage, Image: ref})
}

func (s *Store) record(dir, key, target string, locator domain.Locator) (*domain.CacheEntry, error) {
	entry := &domain.CacheEntry{
		Key:         key,
		Target:      target,
		Locator:     locator,
		ContentHash: contentHash(locator),
		CreatedAt:   s.now().UTC(),
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to marshal cache entry")
	}
	if err := writeAtomic(entryPath(dir, key), data, domain.FilePerm); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to write cache entry"), "key", key)
	}

	s.mu.Lock()
	s.index[key] = entry
	s.mu.Unlock()

	out := *entry
	return &out, nil
}

// Restore rewrites every output of entry under root that is missing or whose
// content differs from the cached blob.
func (s *Store) Restore(ctx context.Context, entry *domain.CacheEntry, root string) error {
	dir, err := s.openDir()
	if err != nil {
		return err
	}

	for _, f := range entry.Locator.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		dst := filepath.Join(root, filepath.FromSlash(f.Path))
		if current, err := fileDigest(dst); err == nil && current == f.Digest {
			continue
		}

		src, err := blobPath(dir, f.Digest)
		if err != nil {
			return err
		}
		if err := restoreFile(src, dst, f.Digest, f.Mode); err != nil {
			return zerr.With(zerr.Wrap(err, "failed to restore output"), "path", f.Path)
		}
	}
	return nil
}

// Invalidate removes the entry for key. Blobs are left for other entries.
func (s *Store) Invalidate(_ context.Context, key string) error {
	dir, err := s.openDir()
	if err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.index, key)
	s.mu.Unlock()

	if err := os.Remove(entryPath(dir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return zerr.With(zerr.Wrap(err, "failed to remove cache entry"), "key", key)
	}
	return nil
}

// Lock takes the builder lock for key.
func (s *Store) Lock(key string) func() {
	s.locks.Lock(key)
	return func() { _ = s.locks.Unlock(key) }
}

func (s *Store) openDir() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dir == "" {
		return "", domain.ErrCacheNotOpen
	}
	return s.dir, nil
}

func entryPath(dir, key string) string {
	name := digest.FromString(key).Encoded()
	if d, err := digest.Parse(key); err == nil {
		name = d.Encoded()
	}
	return filepath.Join(dir, domain.EntriesDirName, name+".json")
}

func blobPath(dir, dgst string) (string, error) {
	d, err := digest.Parse(dgst)
	if err != nil {
		return "", zerr.With(zerr.Wrap(domain.ErrCacheCorrupted, "invalid blob digest"), "digest", dgst)
	}
	return filepath.Join(dir, domain.BlobsDirName, d.Encoded()), nil
}

// contentHash binds an entry to the exact outputs it locates.
func contentHash(l domain.Locator) string {
	h := xxhash.New()
	_, _ = h.WriteString(string(l.Kind))
	_, _ = h.WriteString("\x00")
	_, _ = h.WriteString(l.Image)
	for _, f := range l.Files {
		_, _ = fmt.Fprintf(h, "\x00%s\x00%s\x00%o", f.Path, f.Digest, f.Mode)
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

// collectOutputs expands outputs relative to root into sorted slash paths.
func collectOutputs(root string, outputs []string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, out := range outputs {
		abs := filepath.Join(root, filepath.FromSlash(out))
		info, err := os.Stat(abs)
		if err != nil {
			return nil, zerr.With(zerr.Wrap(domain.ErrOutputMissing, "output not found"), "output", out)
		}
		if !info.IsDir() {
			seen[filepath.ToSlash(filepath.Clean(out))] = struct{}{}
			continue
		}
		err = filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
			if err != nil || d.IsDir() {
				return err
			}
			rel, err := filepath.Rel(root, path)
			if err != nil {
				return err
			}
			seen[filepath.ToSlash(rel)] = struct{}{}
			return nil
		})
		if err != nil {
			return nil, zerr.With(zerr.Wrap(err, "failed to walk output"), "output", out)
		}
	}

	files := make([]string, 0, len(seen))
	for f := range seen {
		if strings.HasPrefix(f, "../") {
			return nil, zerr.With(zerr.Wrap(domain.ErrMalformedDeclaration, "output escapes the workspace"), "output", f)
		}
		files = append(files, f)
	}
	slices.Sort(files)
	return files, nil
}

// storeBlob copies src into the blob directory under its sha256 digest.
func storeBlob(dir, src string) (domain.CachedFile, error) {
	//nolint:gosec // Path is a declared output under the workspace root
	in, err := os.Open(src)
	if err != nil {
		return domain.CachedFile{}, zerr.Wrap(err, "failed to open output")
	}
	defer func() { _ = in.Close() }()

	info, err := in.Stat()
	if err != nil {
		return domain.CachedFile{}, zerr.Wrap(err, "failed to stat output")
	}

	tmp, err := os.CreateTemp(filepath.Join(dir, domain.BlobsDirName), ".blob-*")
	if err != nil {
		return domain.CachedFile{}, zerr.Wrap(err, "failed to create blob")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	digester := digest.Canonical.Digester()
	if _, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), in); err != nil {
		_ = tmp.Close()
		return domain.CachedFile{}, zerr.Wrap(err, "failed to copy output")
	}
	if err := tmp.Close(); err != nil {
		return domain.CachedFile{}, zerr.Wrap(err, "failed to close blob")
	}

	d := digester.Digest()
	dst := filepath.Join(dir, domain.BlobsDirName, d.Encoded())
	// Always replace, so a damaged blob is repaired by the next build.
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return domain.CachedFile{}, zerr.Wrap(err, "failed to commit blob")
	}

	return domain.CachedFile{Digest: d.String(), Mode: uint32(info.Mode().Perm())}, nil
}

func restoreFile(src, dst, dgst string, mode uint32) error {
	//nolint:gosec // Path is a blob inside the cache directory
	in, err := os.Open(src)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.ErrCacheCorrupted
		}
		return err
	}
	defer func() { _ = in.Close() }()

	data, err := io.ReadAll(in)
	if err != nil {
		return err
	}
	if d, err := digest.Parse(dgst); err != nil || d.Algorithm().FromBytes(data) != d {
		return zerr.With(zerr.Wrap(domain.ErrCacheCorrupted, "blob digest mismatch"), "digest", dgst)
	}
	if err := os.MkdirAll(filepath.Dir(dst), domain.DirPerm); err != nil {
		return err
	}

	perm := fs.FileMode(mode).Perm()
	if perm == 0 {
		perm = domain.FilePerm
	}
	return writeAtomic(dst, data, perm)
}

func fileDigest(path string) (string, error) {
	//nolint:gosec // Path is a declared output under the workspace root
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = f.Close() }()

	d, err := digest.Canonical.FromReader(f)
	if err != nil {
		return "", err
	}
	return d.String(), nil
}

// writeAtomic writes data to a temporary sibling of path and renames it into place.
func writeAtomic(path string, data []byte, perm fs.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
