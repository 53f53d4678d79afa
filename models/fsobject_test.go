package models

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blake3 digest of no input.
const emptyHash = "af1349b9f5f9a1a6a0404dea36dcc9499bcb25c9adc112b7cc9a93cae41f3262"

func TestHashFile(t *testing.T) {
	dir := t.TempDir()

	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))

	hash, err := HashFile(empty)
	require.NoError(t, err)
	assert.Equal(t, emptyHash, hash)

	a := filepath.Join(dir, "a")
	b := filepath.Join(dir, "b")
	require.NoError(t, os.WriteFile(a, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("two"), 0o644))

	hashA, err := HashFile(a)
	require.NoError(t, err)
	hashB, err := HashFile(b)
	require.NoError(t, err)
	assert.NotEqual(t, hashA, hashB)
	assert.Len(t, hashA, 64)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestSnapshotRegularFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\n"), 0o640))

	obj, err := Snapshot(path)
	require.NoError(t, err)

	assert.Equal(t, path, obj.Path)
	assert.True(t, obj.Regular)
	assert.False(t, obj.Missing)
	assert.EqualValues(t, 6, obj.Size)
	assert.NotZero(t, obj.Modified)
	assert.Len(t, obj.Hash, 64)
	assert.Equal(t, obj.Hash[:12], obj.ShortHash())
}

func TestSnapshotDirectory(t *testing.T) {
	obj, err := Snapshot(t.TempDir())
	require.NoError(t, err)

	assert.False(t, obj.Regular)
	assert.Empty(t, obj.Hash)
	assert.Empty(t, obj.ShortHash())
}

func TestSnapshotMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone")

	obj, err := Snapshot(path)
	require.NoError(t, err)
	assert.True(t, obj.Missing)
	assert.Equal(t, path, obj.Path)

	_, err = NewFsObject(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
