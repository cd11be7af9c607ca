package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageSaveAndOpen(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	rel, err := store.Save("requests/job-1.csv", []byte("id,status\nreq-1,pending\n"))
	require.NoError(t, err)
	assert.Equal(t, "requests/job-1.csv", rel)

	file, err := store.Open(rel)
	require.NoError(t, err)
	defer file.Close()

	data, err := io.ReadAll(file)
	require.NoError(t, err)
	assert.Contains(t, string(data), "req-1")
}

func TestLocalStorageDelete(t *testing.T) {
	dir := t.TempDir()
	store, err := NewLocalStorage(dir)
	require.NoError(t, err)

	rel, err := store.Save("courses/job-2.pdf", []byte("%PDF"))
	require.NoError(t, err)

	require.NoError(t, store.Delete(rel))
	_, statErr := os.Stat(filepath.Join(dir, rel))
	assert.True(t, os.IsNotExist(statErr))

	// Deleting a missing file is not an error.
	assert.NoError(t, store.Delete(rel))
}

func TestLocalStorageRejectsTraversal(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	for _, name := range []string{"../escape.csv", "/etc/passwd", ".", "reports/../../escape.csv"} {
		_, err := store.Save(name, []byte("x"))
		assert.Error(t, err, name)
		_, err = store.Open(name)
		assert.Error(t, err, name)
	}
}
