package config_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/ybt/internal/core/domain"
)

func TestLoad_DiscoversUpward(t *testing.T) {
	// root/
	//   ybt.yaml
	//   lib/core/ (cwd for test)
	root := t.TempDir()
	writeDeclarations(t, root, "ybt.yaml", "targets:\n  - {name: core, kind: library}\n")
	cwd := filepath.Join(root, "lib", "core")
	require.NoError(t, os.MkdirAll(cwd, 0o750))

	ws, err := newLoader(t, "").Load(context.Background(), cwd)
	require.NoError(t, err)
	assert.Equal(t, root, ws.Root)
	require.Len(t, ws.Declarations, 1)
	assert.Equal(t, "core", ws.Declarations[0].Name)
}

func TestLoad_NearestFileWins(t *testing.T) {
	// root/
	//   ybt.yaml
	//   nested/
	//     ybt.hcl
	//     src/ (cwd for test)
	root := t.TempDir()
	writeDeclarations(t, root, "ybt.yaml", "targets:\n  - {name: outer, kind: library}\n")
	nested := filepath.Join(root, "nested")
	require.NoError(t, os.MkdirAll(filepath.Join(nested, "src"), 0o750))
	writeDeclarations(t, nested, "ybt.hcl", "target \"inner\" {\n  kind = \"library\"\n}\n")

	ws, err := newLoader(t, "").Load(context.Background(), filepath.Join(nested, "src"))
	require.NoError(t, err)
	assert.Equal(t, nested, ws.Root)
	require.Len(t, ws.Declarations, 1)
	assert.Equal(t, "inner", ws.Declarations[0].Name)
}

func TestLoad_PrefersYAMLInSameDirectory(t *testing.T) {
	root := t.TempDir()
	writeDeclarations(t, root, "ybt.hcl", "target \"from_hcl\" {\n  kind = \"library\"\n}\n")
	writeDeclarations(t, root, "ybt.yaml", "targets:\n  - {name: from_yaml, kind: library}\n")

	ws, err := newLoader(t, "").Load(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ybt.yaml"), ws.File)
}

func TestLoad_IgnoresDirectoryNamedLikeFile(t *testing.T) {
	root := t.TempDir()
	writeDeclarations(t, root, "ybt.yml", "targets: []\n")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "ybt.yaml"), 0o750))

	ws, err := newLoader(t, "").Load(context.Background(), filepath.Join(root, "sub"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "ybt.yml"), ws.File)
}

func TestLoad_NotFound(t *testing.T) {
	_, err := newLoader(t, "").Load(context.Background(), t.TempDir())
	require.ErrorIs(t, err, domain.ErrConfigNotFound)
}
