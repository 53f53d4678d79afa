package watcher

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("content\n"), 0o644))
}

func TestCollectFiles(t *testing.T) {
	root := t.TempDir()

	want := []string{
		filepath.Join(root, "a.txt"),
		filepath.Join(root, "b", "c.txt"),
		filepath.Join(root, "b", "d", "e.txt"),
		filepath.Join(root, "b", "d", "f.txt"),
		filepath.Join(root, "z.txt"),
	}
	for _, p := range want {
		writeFile(t, p)
	}
	require.NoError(t, os.MkdirAll(filepath.Join(root, "empty", "nested"), 0o755))

	assert.Equal(t, want, CollectFiles(root))
}

func TestCollectFilesEmptyDir(t *testing.T) {
	assert.Empty(t, CollectFiles(t.TempDir()))
}

func TestCollectFilesMissingRoot(t *testing.T) {
	assert.Empty(t, CollectFiles(filepath.Join(t.TempDir(), "missing")))
}

func TestCollectFilesRootIsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file.txt")
	writeFile(t, file)

	assert.Empty(t, CollectFiles(file))
}

func TestCollectFilesSkipsSymlinks(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()

	file := filepath.Join(root, "real.txt")
	writeFile(t, file)
	writeFile(t, filepath.Join(outside, "elsewhere.txt"))

	if err := os.Symlink(file, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}
	require.NoError(t, os.Symlink(outside, filepath.Join(root, "linkdir")))

	assert.Equal(t, []string{file}, CollectFiles(root))
}

func TestCollectFilesSkipsUnreadableDir(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permissions are not enforced for root")
	}

	root := t.TempDir()
	readable := filepath.Join(root, "a", "ok.txt")
	writeFile(t, readable)
	writeFile(t, filepath.Join(root, "b", "hidden.txt"))

	locked := filepath.Join(root, "b")
	require.NoError(t, os.Chmod(locked, 0o000))
	t.Cleanup(func() {
		_ = os.Chmod(locked, 0o755)
	})

	assert.Equal(t, []string{readable}, CollectFiles(root))
}
