package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbs_Containment(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	abs, err := store.Abs("masters/photo001.jpg")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "masters", "photo001.jpg"), abs)

	// traversal is cleaned away, never escapes the root
	abs, err = store.Abs("../../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "etc", "passwd"), abs)
}

func TestWriteFileAndRead(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	abs, err := store.WriteFile("lowres/42_lowres.jpg", []byte("jpeg bytes"))
	require.NoError(t, err)
	assert.True(t, store.Exists("lowres/42_lowres.jpg"))

	data, err := os.ReadFile(abs)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg bytes"), data)

	size, err := store.Size("lowres/42_lowres.jpg")
	require.NoError(t, err)
	assert.Equal(t, int64(10), size)
}

func TestWriteFile_LeavesNoPartials(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.WriteFile("cache/a.bin", []byte("data"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Join(store.Root(), "cache"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "a.bin", entries[0].Name())
}

func TestExists(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.False(t, store.Exists("missing.jpg"))

	_, err = store.WriteFile("present.jpg", []byte("x"))
	require.NoError(t, err)
	assert.True(t, store.Exists("present.jpg"))

	// directories do not count as files
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "adir"), 0o755))
	assert.False(t, store.Exists("adir"))
}

func TestSiblings(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.WriteFile("masters/photo001.jpg", []byte("a"))
	require.NoError(t, err)
	_, err = store.WriteFile("masters/photo001.tif", []byte("b"))
	require.NoError(t, err)
	_, err = store.WriteFile("masters/other.png", []byte("c"))
	require.NoError(t, err)

	siblings, err := store.Siblings("masters/photo001.jpg")
	require.NoError(t, err)
	assert.Len(t, siblings, 3)
	assert.Contains(t, siblings, filepath.Join("masters", "photo001.tif"))
}
