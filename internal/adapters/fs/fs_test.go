package fs_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opencontainers/go-digest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/ybt/internal/adapters/fs"
)

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestWalker_WalkFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, ".git/config", "git config")
	writeFile(t, tmpDir, ".ybt/cache/entries/x.json", "{}")
	writeFile(t, tmpDir, "ignored/file", "ignored content")
	writeFile(t, tmpDir, "src/main.c", "int main;")
	writeFile(t, tmpDir, "src/main.o", "obj")
	writeFile(t, tmpDir, "README.md", "# Readme")

	walker := fs.NewWalker()

	var files []string
	for path := range walker.WalkFiles(tmpDir, []string{"ignored", "*.o"}) {
		rel, err := filepath.Rel(tmpDir, path)
		require.NoError(t, err)
		files = append(files, filepath.ToSlash(rel))
	}

	assert.ElementsMatch(t, []string{"README.md", "src/main.c"}, files)
}

func TestWalker_WalkFiles_StopsEarly(t *testing.T) {
	tmpDir := t.TempDir()
	writeFile(t, tmpDir, "a", "a")
	writeFile(t, tmpDir, "b", "b")

	n := 0
	for range fs.NewWalker().WalkFiles(tmpDir, nil) {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

func TestHasher_HashFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "hello.txt", "hello world")

	hasher := fs.NewHasher()

	got, err := hasher.HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, digest.FromString("hello world").String(), got)

	_, err = hasher.HashFile(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to open file")
}

func TestHasher_HashSources(t *testing.T) {
	root := t.TempDir()
	b := writeFile(t, root, "src/b.c", "b")
	a := writeFile(t, root, "src/a.c", "a")

	hasher := fs.NewHasher()

	got, err := hasher.HashSources([]string{b, a}, root)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "src/a.c", got[0].Path)
	assert.Equal(t, digest.FromString("a").String(), got[0].Digest)
	assert.Equal(t, "src/b.c", got[1].Path)

	relative, err := hasher.HashSources([]string{"src/a.c"}, root)
	require.NoError(t, err)
	assert.Equal(t, got[0], relative[0])
}

func TestHasher_HashSources_StableAcrossCheckouts(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	p1 := writeFile(t, first, "lib/x.c", "same")
	p2 := writeFile(t, second, "lib/x.c", "same")

	hasher := fs.NewHasher()
	d1, err := hasher.HashSources([]string{p1}, first)
	require.NoError(t, err)
	d2, err := hasher.HashSources([]string{p2}, second)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
}
