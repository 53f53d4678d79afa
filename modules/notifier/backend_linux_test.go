package notifier

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// collector is a Handler that can be waited on.
type collector struct {
	mu      sync.Mutex
	results []Result
	ch      chan struct{}
}

func newCollector() *collector {
	return &collector{ch: make(chan struct{}, 1)}
}

func (c *collector) handle(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()

	select {
	case c.ch <- struct{}{}:
	default:
	}
}

// waitFor returns once an event for path has been handled.
func (c *collector) waitFor(t *testing.T, path string) Result {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		for _, r := range c.results {
			for _, p := range r.Event.Paths {
				if p == path {
					c.mu.Unlock()
					return r
				}
			}
		}
		c.mu.Unlock()

		select {
		case <-c.ch:
		case <-deadline:
			t.Fatalf("no event for %s", path)
		}
	}
}

func tempDir(t *testing.T) string {
	t.Helper()

	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)

	return dir
}

func touch(t *testing.T, path string) {
	t.Helper()

	require.NoError(t, os.WriteFile(path, []byte("x\n"), 0o644))
}

func TestBackendsWatchFile(t *testing.T) {
	for _, name := range []string{"notify", "fsnotify"} {
		t.Run(name, func(t *testing.T) {
			dir := tempDir(t)
			file := filepath.Join(dir, "a.txt")
			touch(t, file)

			c := newCollector()
			b, err := New(name, c.handle)
			require.NoError(t, err)
			defer b.Close()

			require.NoError(t, b.Watch(file, false))
			touch(t, file)

			r := c.waitFor(t, file)
			assert.False(t, r.IsErr())
		})
	}
}

func TestBackendsWatchTree(t *testing.T) {
	for _, name := range []string{"notify", "fsnotify"} {
		t.Run(name, func(t *testing.T) {
			dir := tempDir(t)
			require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))

			c := newCollector()
			b, err := New(name, c.handle)
			require.NoError(t, err)
			defer b.Close()

			require.NoError(t, b.Watch(dir, true))

			file := filepath.Join(dir, "sub", "new.txt")
			touch(t, file)

			c.waitFor(t, file)
		})
	}
}

func TestFsnotifyFollowsNewDirectories(t *testing.T) {
	dir := tempDir(t)

	c := newCollector()
	b, err := New("fsnotify", c.handle)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Watch(dir, true))

	sub := filepath.Join(dir, "later")
	require.NoError(t, os.Mkdir(sub, 0o755))
	c.waitFor(t, sub)

	// The directory is added from the event loop once its creation is seen.
	time.Sleep(100 * time.Millisecond)

	file := filepath.Join(sub, "b.txt")
	touch(t, file)
	c.waitFor(t, file)
}

func TestFsnotifyRecursiveRequiresDirectory(t *testing.T) {
	dir := tempDir(t)
	file := filepath.Join(dir, "a.txt")
	touch(t, file)

	b, err := New("fsnotify", func(Result) {})
	require.NoError(t, err)
	defer b.Close()

	assert.Error(t, b.Watch(file, true))
	assert.Error(t, b.Watch(filepath.Join(dir, "missing"), true))
	assert.Error(t, b.Watch(filepath.Join(dir, "missing.txt"), false))
}

func TestBackendsCloseIsIdempotent(t *testing.T) {
	for _, name := range []string{"notify", "fsnotify"} {
		t.Run(name, func(t *testing.T) {
			dir := tempDir(t)

			b, err := New(name, func(Result) {})
			require.NoError(t, err)
			require.NoError(t, b.Watch(dir, true))

			require.NoError(t, b.Close())
			require.NoError(t, b.Close())

			assert.ErrorIs(t, b.Watch(dir, true), ErrClosed)
		})
	}
}

func TestNoHandlerCallsAfterClose(t *testing.T) {
	for _, name := range []string{"notify", "fsnotify"} {
		t.Run(name, func(t *testing.T) {
			dir := tempDir(t)

			var mu sync.Mutex
			closed := false
			late := 0

			b, err := New(name, func(Result) {
				mu.Lock()
				if closed {
					late++
				}
				mu.Unlock()
			})
			require.NoError(t, err)
			require.NoError(t, b.Watch(dir, true))

			for i := 0; i < 20; i++ {
				touch(t, filepath.Join(dir, "busy.txt"))
			}
			require.NoError(t, b.Close())

			mu.Lock()
			closed = true
			mu.Unlock()

			touch(t, filepath.Join(dir, "busy.txt"))
			time.Sleep(100 * time.Millisecond)

			mu.Lock()
			defer mu.Unlock()
			assert.Zero(t, late)
		})
	}
}
