package layerdb_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/ybt/internal/adapters/layerdb"
	"go.trai.ch/ybt/internal/core/domain"
)

func openStore(t *testing.T, dir string) *layerdb.Store {
	t.Helper()
	s := layerdb.NewStore()
	require.NoError(t, s.Open(dir))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openStore(t, t.TempDir())

	layer := domain.Layer{
		Fingerprint: "sha256:aa",
		Parent:      "sha256:base",
		Step:        &domain.SetupStep{Name: "gcc", Run: []string{"apk", "add", "gcc"}},
		ImageRef:    "ybt/layer:aa",
		CreatedAt:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, store.Put(ctx, layer))

	got, err := store.Get(ctx, "sha256:aa")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, layer, *got)

	require.NoError(t, store.Delete(ctx, "sha256:aa"))
	got, err = store.Get(ctx, "sha256:aa")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, store.Delete(ctx, "sha256:unknown"))
}

func TestStore_Persistence(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := layerdb.NewStore()
	require.NoError(t, first.Open(dir))
	require.NoError(t, first.Put(ctx, domain.Layer{Fingerprint: "sha256:bb", BaseImage: "alpine:3.20"}))
	require.NoError(t, first.Close())

	got, err := openStore(t, dir).Get(ctx, "sha256:bb")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsBase())
	assert.Equal(t, "alpine:3.20", got.BaseImage)
}

func TestStore_NotOpen(t *testing.T) {
	store := layerdb.NewStore()

	_, err := store.Get(context.Background(), "sha256:aa")
	require.ErrorIs(t, err, domain.ErrCacheNotOpen)
	require.ErrorIs(t, store.Put(context.Background(), domain.Layer{}), domain.ErrCacheNotOpen)
	require.NoError(t, store.Close())
}
