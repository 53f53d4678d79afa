package notifier

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// fsnotifyBackend has no native recursion. Recursive registrations add every
// directory of the tree and follow directories created below a recursive root.
type fsnotifyBackend struct {
	w      *fsnotify.Watcher
	h      Handler
	roots  map[string]struct{}
	mu     *sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

func newFsnotifyBackend(h Handler) (Backend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	b := &fsnotifyBackend{
		w:     w,
		h:     h,
		roots: make(map[string]struct{}),
		mu:    &sync.Mutex{},
	}

	b.wg.Add(1)
	go b.readEvents()

	return b, nil
}

func (b *fsnotifyBackend) Watch(path string, recursive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	p, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	if !recursive {
		return b.w.Add(p)
	}

	info, err := os.Stat(p)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("recursive watch requires a directory: %s", p)
	}

	// WalkDir does not descend into a symlinked root, so the tree is watched
	// and reported below its target.
	p, err = filepath.EvalSymlinks(p)
	if err != nil {
		return fmt.Errorf("failed to resolve %s: %w", path, err)
	}

	if err := b.addTree(p); err != nil {
		return err
	}
	b.roots[p] = struct{}{}

	return nil
}

func (b *fsnotifyBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	// Closing the watcher closes its Events and Errors channels which ends
	// readEvents.
	err := b.w.Close()
	b.wg.Wait()

	return err
}

func (b *fsnotifyBackend) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if entry.IsDir() {
			if err := b.w.Add(path); err != nil {
				return err
			}
		}

		return nil
	})
}

func (b *fsnotifyBackend) readEvents() {
	defer b.wg.Done()

	for {
		select {
		case event, ok := <-b.w.Events:
			if !ok {
				return
			}

			if event.Has(fsnotify.Create) {
				b.followDir(event.Name)
			}

			b.h(Result{Event: newEvent(fsnotifyKind(event.Op), event.Name)})
		case err, ok := <-b.w.Errors:
			if !ok {
				return
			}

			b.h(Result{Err: &BackendError{Backend: "fsnotify", Err: err}})
		}
	}
}

// followDir starts watching a directory created below a recursive root.
func (b *fsnotifyBackend) followDir(path string) {
	info, err := os.Lstat(path)
	if err != nil || !info.IsDir() {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed || !b.underRoot(path) {
		return
	}

	if err := b.addTree(path); err != nil {
		log.Debug().Err(err).Msgf("failed to follow new directory %s", path)
	}
}

func (b *fsnotifyBackend) underRoot(path string) bool {
	for root := range b.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}

		if rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}

	return false
}

func fsnotifyKind(op fsnotify.Op) Kind {
	switch {
	case op.Has(fsnotify.Create):
		return KindCreate
	case op.Has(fsnotify.Remove):
		return KindRemove
	case op.Has(fsnotify.Write):
		return KindModify
	default:
		return KindOther
	}
}
