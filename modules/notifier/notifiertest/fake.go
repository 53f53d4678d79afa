// Package notifiertest provides an in-memory notifier backend for tests.
package notifiertest

import (
	"sync"
	"time"

	"github.com/Leantar/fswatchbench/modules/notifier"
)

type Registration struct {
	Path      string
	Recursive bool
}

// Recorder hands out fake backends and keeps every one it created.
type Recorder struct {
	// FailOn makes Watch fail for the given paths.
	FailOn map[string]error
	// Delay is spent inside every Watch call.
	Delay time.Duration

	mu       sync.Mutex
	backends []*Backend
}

func (r *Recorder) Factory() notifier.Factory {
	return func(h notifier.Handler) (notifier.Backend, error) {
		b := &Backend{h: h, failOn: r.FailOn, delay: r.Delay}

		r.mu.Lock()
		r.backends = append(r.backends, b)
		r.mu.Unlock()

		return b, nil
	}
}

func (r *Recorder) Backends() []*Backend {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]*Backend(nil), r.backends...)
}

// Last returns the most recently created backend or nil.
func (r *Recorder) Last() *Backend {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.backends) == 0 {
		return nil
	}

	return r.backends[len(r.backends)-1]
}

type Backend struct {
	h      notifier.Handler
	failOn map[string]error
	delay  time.Duration

	mu     sync.Mutex
	regs   []Registration
	closed bool
}

func (b *Backend) Watch(path string, recursive bool) error {
	if b.delay > 0 {
		time.Sleep(b.delay)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return notifier.ErrClosed
	}
	if err, ok := b.failOn[path]; ok {
		return err
	}

	b.regs = append(b.regs, Registration{Path: path, Recursive: recursive})

	return nil
}

func (b *Backend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	return nil
}

// Emit delivers r to the handler unless the backend is closed and reports
// whether it did.
func (b *Backend) Emit(r notifier.Result) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}
	b.h(r)

	return true
}

// EmitEvent emits a successful event for paths.
func (b *Backend) EmitEvent(kind notifier.Kind, paths ...string) bool {
	return b.Emit(notifier.Result{Event: notifier.Event{Kind: kind, Paths: paths, Time: time.Now()}})
}

func (b *Backend) Registrations() []Registration {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]Registration(nil), b.regs...)
}

func (b *Backend) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}
