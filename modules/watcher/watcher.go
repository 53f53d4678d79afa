// Package watcher compares two ways of watching a directory tree: one watch
// per file, or a single recursive watch provided by the backend. Every
// variant measures how long its registrations took and delivers notifications
// through an unbounded Receiver.
package watcher

import (
	"sync"
	"time"

	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/rs/zerolog/log"
)

type Option func(*options)

type options struct {
	backend string
	factory notifier.Factory
}

// WithBackend selects a notifier backend by name.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithFactory overrides backend creation. It takes precedence over
// WithBackend.
func WithFactory(f notifier.Factory) Option {
	return func(o *options) {
		o.factory = f
	}
}

func (o options) newBackend(h notifier.Handler) (notifier.Backend, error) {
	if o.factory != nil {
		return o.factory(h)
	}

	return notifier.New(o.backend, h)
}

func buildOptions(opts []Option) options {
	o := options{backend: notifier.Default}
	for _, opt := range opts {
		opt(&o)
	}

	return o
}

// Watch owns the backend registrations of a watcher. Notifications keep
// flowing until Close is called.
type Watch struct {
	backend notifier.Backend
	out     *sender
	mu      *sync.Mutex
	closed  bool
	err     error
}

func newWatch(b notifier.Backend, out *sender) *Watch {
	return &Watch{
		backend: b,
		out:     out,
		mu:      &sync.Mutex{},
	}
}

// Close releases every registration and ends the event stream. Results
// buffered before Close remain receivable. Calling Close again returns the
// first result.
func (w *Watch) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.err
	}
	w.closed = true

	// The backend joins its goroutines, so nothing is sent after this.
	w.err = w.backend.Close()
	w.out.Close()

	return w.err
}

func (w *Watch) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.closed
}

type handle struct {
	watch     *Watch
	receiver  *Receiver
	setupTime time.Duration
}

// SetupTime is the wall-clock time spent inside the registration calls.
func (h *handle) SetupTime() time.Duration {
	return h.setupTime
}

// Receiver gives access to the event stream for repeated polling.
func (h *handle) Receiver() *Receiver {
	return h.receiver
}

// Split hands out the watch owner and the receiver separately so they can be
// moved to different goroutines.
func (h *handle) Split() (*Watch, *Receiver) {
	return h.watch, h.receiver
}

// Close releases the watch and detaches the receiver.
func (h *handle) Close() error {
	err := h.watch.Close()
	h.receiver.Close()

	return err
}

// register creates a backend wired to a fresh channel and runs each
// registration, summing the time spent inside the calls. On failure the
// backend is closed, which releases the registrations that already succeeded.
func register(o options, wrap func(notifier.Handler) notifier.Handler, paths []string, recursive bool) (handle, error) {
	out, rx := newChannel()

	h := out.Handler()
	if wrap != nil {
		h = wrap(h)
	}

	b, err := o.newBackend(h)
	if err != nil {
		return handle{}, err
	}

	var setup time.Duration
	for _, p := range paths {
		start := time.Now()
		err := b.Watch(p, recursive)
		setup += time.Since(start)

		if err != nil {
			if cerr := b.Close(); cerr != nil {
				log.Warn().Err(cerr).Msg("failed to release partial registrations")
			}
			out.Close()
			rx.Close()

			return handle{}, &RegistrationError{Path: p, Recursive: recursive, Err: err}
		}
	}

	return handle{
		watch:     newWatch(b, out),
		receiver:  rx,
		setupTime: setup,
	}, nil
}

// ManualWatcher watches every file with its own non-recursive registration.
type ManualWatcher struct {
	handle
	filesWatched int
}

// NewManual watches every regular file currently below dir.
func NewManual(dir string, opts ...Option) (*ManualWatcher, error) {
	return NewManualWithFiles(CollectFiles(dir), opts...)
}

// NewManualWithFiles registers one watch per path, in order. Paths are used
// as given, a missing path fails the whole construction.
func NewManualWithFiles(files []string, opts ...Option) (*ManualWatcher, error) {
	log.Info().Msgf("manual watcher: watching %d specific files", len(files))

	h, err := register(buildOptions(opts), nil, files, false)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("manual watcher: added watches for %d files in %v", len(files), h.setupTime)
	if len(files) > 0 {
		log.Info().Msgf("manual watcher: average time per watch: %v", h.setupTime/time.Duration(len(files)))
	}

	return &ManualWatcher{
		handle:       h,
		filesWatched: len(files),
	}, nil
}

func (w *ManualWatcher) FilesWatched() int {
	return w.filesWatched
}

// NativeWatcher relies on a single recursive registration.
type NativeWatcher struct {
	handle
}

func NewNative(dir string, opts ...Option) (*NativeWatcher, error) {
	h, err := register(buildOptions(opts), nil, []string{dir}, true)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("native watcher: setup native recursive watch in %v", h.setupTime)

	return &NativeWatcher{handle: h}, nil
}

// FilteredNativeWatcher is a NativeWatcher that only reports events touching
// files of its FilterSet.
type FilteredNativeWatcher struct {
	handle
	filter FilterSet
}

// NewNativeWithFilter watches dir recursively and drops every event that does
// not touch one of files. Files that do not exist or are not regular are left
// out of the filter.
func NewNativeWithFilter(dir string, files []string, opts ...Option) (*FilteredNativeWatcher, error) {
	filter := NewFilterSet(files)

	wrap := func(next notifier.Handler) notifier.Handler {
		return Filter(filter, next)
	}

	h, err := register(buildOptions(opts), wrap, []string{dir}, true)
	if err != nil {
		return nil, err
	}

	log.Info().Msgf("filtered native watcher: setup native recursive watch with %d file filters in %v", filter.Len(), h.setupTime)

	return &FilteredNativeWatcher{
		handle: h,
		filter: filter,
	}, nil
}

func (w *FilteredNativeWatcher) FilesFiltered() int {
	return w.filter.Len()
}
