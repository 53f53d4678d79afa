package notifier

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rjeczalik/notify"
)

// notify does not block when sending to its channel, events are lost once the
// buffer is full. The pump drains it into the handler as fast as it can.
const notifyBufferSize = 4096

type notifyBackend struct {
	c      chan notify.EventInfo
	h      Handler
	done   chan struct{}
	wg     sync.WaitGroup
	mu     *sync.Mutex
	closed bool
}

func newNotifyBackend(h Handler) (Backend, error) {
	b := &notifyBackend{
		c:    make(chan notify.EventInfo, notifyBufferSize),
		h:    h,
		done: make(chan struct{}),
		mu:   &sync.Mutex{},
	}

	b.wg.Add(1)
	go b.readEvents()

	return b, nil
}

func (b *notifyBackend) Watch(path string, recursive bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrClosed
	}

	p, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to get absolute path: %w", err)
	}

	if recursive {
		p = filepath.Join(p, "...")
	}

	return notify.Watch(p, b.c, notify.All)
}

func (b *notifyBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	// Stop guarantees that c receives nothing once it returns.
	notify.Stop(b.c)
	close(b.done)
	b.wg.Wait()

	return nil
}

func (b *notifyBackend) readEvents() {
	defer b.wg.Done()

	for {
		select {
		case ei := <-b.c:
			b.h(Result{Event: newEvent(notifyKind(ei.Event()), ei.Path())})
		case <-b.done:
			return
		}
	}
}

func notifyKind(e notify.Event) Kind {
	switch {
	case e&notify.Create != 0:
		return KindCreate
	case e&notify.Remove != 0:
		return KindRemove
	case e&notify.Write != 0:
		return KindModify
	default:
		return KindOther
	}
}
