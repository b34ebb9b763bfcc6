// Package layerdb persists materialized environment layers in a bbolt database.
package layerdb

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
	"go.trai.ch/ybt/internal/core/domain"
	"go.trai.ch/ybt/internal/core/ports"
	"go.trai.ch/zerr"
)

var layersBucket = []byte("layers")

// openTimeout bounds how long Open waits for another process holding the database.
const openTimeout = 5 * time.Second

var _ ports.LayerCache = (*Store)(nil)

// Store is a fingerprint-keyed layer index. bbolt serializes writers and lets
// readers run concurrently.
type Store struct {
	mu sync.RWMutex
	db *bolt.DB
}

// NewStore creates an unopened Store.
func NewStore() *Store {
	return &Store{}
}

// Open opens or creates the layer database inside dir.
func (s *Store) Open(dir string) error {
	if err := os.MkdirAll(dir, domain.DirPerm); err != nil {
		return zerr.With(zerr.Wrap(err, "failed to create cache directory"), "path", dir)
	}

	path := filepath.Join(dir, domain.LayerDBFile)
	db, err := bolt.Open(path, domain.PrivateFilePerm, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to open layer database"), "path", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(layersBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return zerr.Wrap(err, "failed to initialize layer database")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		_ = s.db.Close()
	}
	s.db = db
	return nil
}

// Close releases the database file.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Get returns the layer stored for fingerprint, or nil when unknown.
func (s *Store) Get(_ context.Context, fingerprint string) (*domain.Layer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return nil, domain.ErrCacheNotOpen
	}

	var layer *domain.Layer
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(layersBucket).Get([]byte(fingerprint))
		if data == nil {
			return nil
		}
		layer = &domain.Layer{}
		return json.Unmarshal(data, layer)
	})
	if err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to read layer"), "fingerprint", fingerprint)
	}
	return layer, nil
}

// Put stores layer under its fingerprint, replacing any previous record.
func (s *Store) Put(_ context.Context, layer domain.Layer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.ErrCacheNotOpen
	}

	data, err := json.Marshal(layer)
	if err != nil {
		return zerr.Wrap(err, "failed to marshal layer")
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(layersBucket).Put([]byte(layer.Fingerprint), data)
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to write layer"), "fingerprint", layer.Fingerprint)
	}
	return nil
}

// Delete forgets fingerprint. Unknown fingerprints are ignored.
func (s *Store) Delete(_ context.Context, fingerprint string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.db == nil {
		return domain.ErrCacheNotOpen
	}

	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(layersBucket).Delete([]byte(fingerprint))
	})
	if err != nil {
		return zerr.With(zerr.Wrap(err, "failed to delete layer"), "fingerprint", fingerprint)
	}
	return nil
}
