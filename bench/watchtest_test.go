package bench

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Leantar/fswatchbench/modules/notifier/notifiertest"
	"github.com/Leantar/fswatchbench/modules/watcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchTestCopiesModifiesAndCleansUp(t *testing.T) {
	dir := testTree(t, 4)
	conf := testConfig(t)
	conf.ModifyCount = 3

	rec := &notifiertest.Recorder{}
	r, out := fakeRunner(t, conf, rec)

	res, err := r.WatchTest(dir, watcher.ModeManual)
	require.NoError(t, err)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, 8, res.Copied)
	assert.Equal(t, 8, res.Watched)
	assert.Equal(t, 3, res.Modified)
	assert.Empty(t, res.Events)

	// The source is left alone and the copy is gone.
	content, err := os.ReadFile(filepath.Join(dir, "file_000.txt"))
	require.NoError(t, err)
	assert.NotContains(t, string(content), "Modified by test")
	assert.NoDirExists(t, filepath.Join(conf.TmpDir, "tree"))

	tmp := filepath.Join(conf.TmpDir, "tree")
	for _, reg := range rec.Last().Registrations() {
		assert.True(t, strings.HasPrefix(reg.Path, tmp), reg.Path)
	}

	for _, step := range []string{"1. Copying", "2. Setting up", "3. Running", "4. Cleaning up", "=== Watch Test Complete ==="} {
		assert.Contains(t, out.String(), step)
	}
}

func TestWatchTestWithoutFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "empty")
	require.NoError(t, os.Mkdir(dir, 0o755))

	r, out := fakeRunner(t, testConfig(t), &notifiertest.Recorder{})

	res, err := r.WatchTest(dir, watcher.ModeNative)
	require.NoError(t, err)

	assert.Zero(t, res.Copied)
	assert.Zero(t, res.Modified)
	assert.Contains(t, out.String(), "No files to modify for testing")
}

func TestWatchTestRejectsTmpInsideSource(t *testing.T) {
	dir := testTree(t, 1)
	conf := testConfig(t)
	conf.TmpDir = filepath.Join(dir, "tmp")

	r, _ := fakeRunner(t, conf, &notifiertest.Recorder{})

	_, err := r.WatchTest(dir, watcher.ModeManual)
	assert.ErrorContains(t, err, "must not be inside")
	assert.NoDirExists(t, conf.TmpDir)
}
