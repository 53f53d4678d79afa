// Package notifier abstracts the operating system's filesystem change
// notification facility behind a small "watch a path, get called back" API.
package notifier

import (
	"errors"
	"fmt"
	"sort"
)

// Default is the backend used when none is configured.
const Default = "notify"

var (
	ErrUnknownBackend = errors.New("unknown backend")
	ErrClosed         = errors.New("backend is closed")
)

// Handler receives every notification a backend produces. It is called from
// the backend's own goroutine and must return without blocking.
type Handler func(Result)

// Backend registers watches and delivers their notifications to the Handler it
// was created with.
type Backend interface {
	// Watch registers path. With recursive set the whole subtree is covered,
	// including entries created later. Otherwise a directory covers only its
	// direct children.
	Watch(path string, recursive bool) error
	// Close releases every registered watch. No Handler call happens after
	// Close returns.
	Close() error
}

type Factory func(Handler) (Backend, error)

var factories = map[string]Factory{
	"notify":   newNotifyBackend,
	"fsnotify": newFsnotifyBackend,
}

// New creates the backend registered under name.
func New(name string, h Handler) (Backend, error) {
	if name == "" {
		name = Default
	}

	factory, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (available: %v)", ErrUnknownBackend, name, Names())
	}

	b, err := factory(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", name, err)
	}

	return b, nil
}

// Names lists the backends available on this platform.
func Names() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// register is called from init functions of platform specific backends.
func register(name string, f Factory) {
	factories[name] = f
}
