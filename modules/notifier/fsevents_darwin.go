//go:build darwin

package notifier

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsevents"
)

const fseventsLatency = 10 * time.Millisecond

func init() {
	register("fsevents", newFseventsBackend)
}

// fseventsBackend opens one FSEvents stream per registration. Streams are
// always recursive, non-recursive registrations drop events below direct
// children.
type fseventsBackend struct {
	h       Handler
	streams []*fsevents.EventStream
	done    chan struct{}
	mu      *sync.Mutex
	wg      sync.WaitGroup
	closed  bool
}

func newFseventsBackend(h Handler) (Backend, error) {
	return &fseventsBackend{
		h:    h,
		done: make(chan struct{}),
		mu:   &sync.Mutex{},
	}, nil
}

func (b *fseventsBackend) Watch(path string, recursive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	ap, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	// DeviceForPath fails for paths that do not exist.
	if _, err := fsevents.DeviceForPath(ap); err != nil {
		return fmt.Errorf("failed to retrieve device for path: %w", err)
	}

	es := &fsevents.EventStream{
		Paths:   []string{ap},
		Latency: fseventsLatency,
		Flags:   fsevents.FileEvents | fsevents.WatchRoot | fsevents.NoDefer,
		Events:  make(chan []fsevents.Event, 64),
	}
	es.Start()

	b.streams = append(b.streams, es)

	b.wg.Add(1)
	go b.readEvents(es, ap, recursive)

	return nil
}

func (b *fseventsBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	streams := b.streams
	b.mu.Unlock()

	for _, es := range streams {
		es.Stop()
	}
	close(b.done)
	b.wg.Wait()

	return nil
}

func (b *fseventsBackend) readEvents(es *fsevents.EventStream, root string, recursive bool) {
	defer b.wg.Done()

	for {
		select {
		case msg, ok := <-es.Events:
			if !ok {
				return
			}

			for _, event := range msg {
				p := event.Path
				if !strings.HasPrefix(p, "/") {
					p = "/" + p
				}

				if !recursive && p != root && filepath.Dir(p) != root {
					continue
				}

				if event.Flags&fsevents.MustScanSubDirs != 0 {
					b.h(Result{Err: &BackendError{Backend: "fsevents", Err: fmt.Errorf("events coalesced below %s", p)}})
					continue
				}

				b.h(Result{Event: newEvent(fseventsKind(event.Flags), p)})
			}
		case <-b.done:
			return
		}
	}
}

func fseventsKind(flags fsevents.EventFlags) Kind {
	switch {
	case flags&fsevents.ItemCreated != 0:
		return KindCreate
	case flags&fsevents.ItemRemoved != 0:
		return KindRemove
	case flags&fsevents.ItemModified != 0:
		return KindModify
	default:
		return KindOther
	}
}
