package notifier

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func TestFanotifyWatchTree(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("fanotify needs CAP_SYS_ADMIN")
	}

	dir := tempDir(t)
	outside := tempDir(t)

	c := newCollector()
	b, err := New("fanotify", c.handle)
	if err != nil {
		t.Skipf("fanotify unavailable: %v", err)
	}
	defer b.Close()

	if err := b.Watch(dir, true); err != nil {
		t.Skipf("filesystem marks unsupported here: %v", err)
	}

	// Events outside the registered tree are dropped even though the whole
	// filesystem is marked.
	touch(t, filepath.Join(outside, "ignored.txt"))

	file := filepath.Join(dir, "a.txt")
	touch(t, file)
	c.waitFor(t, file)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.results {
		for _, p := range r.Event.Paths {
			assert.NotContains(t, p, outside)
		}
	}
}

func TestFanotifyCloseIsIdempotent(t *testing.T) {
	if os.Geteuid() != 0 {
		t.Skip("fanotify needs CAP_SYS_ADMIN")
	}

	b, err := New("fanotify", func(Result) {})
	if err != nil {
		t.Skipf("fanotify unavailable: %v", err)
	}

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	assert.ErrorIs(t, b.Watch(tempDir(t), true), ErrClosed)
}

func TestFanotifyIsWatched(t *testing.T) {
	b := &fanotifyBackend{
		trees: map[string]struct{}{"/srv/data": {}},
		paths: map[string]struct{}{"/etc/hosts": {}, "/var/log": {}},
		mu:    &sync.Mutex{},
	}

	assert.True(t, b.isWatched("/srv/data"))
	assert.True(t, b.isWatched("/srv/data/a/b.txt"))
	assert.True(t, b.isWatched("/etc/hosts"))
	assert.False(t, b.isWatched("/srv/database"))
	assert.False(t, b.isWatched("/etc/passwd"))
	assert.True(t, b.isWatched("/var/log/syslog"))
	assert.False(t, b.isWatched("/var/log/nginx/access.log"))
}

func TestFanotifyKind(t *testing.T) {
	assert.Equal(t, KindCreate, fanotifyKind(unix.FAN_CREATE))
	assert.Equal(t, KindCreate, fanotifyKind(unix.FAN_MOVED_TO))
	assert.Equal(t, KindRemove, fanotifyKind(unix.FAN_DELETE))
	assert.Equal(t, KindModify, fanotifyKind(unix.FAN_MODIFY))
	assert.Equal(t, KindOther, fanotifyKind(unix.FAN_ATTRIB))
}
