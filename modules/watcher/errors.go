package watcher

import (
	"errors"
	"fmt"
)

var (
	// ErrDisconnected marks the end of the event stream: the watch was closed
	// and every buffered notification has been received. Like io.EOF it is a
	// signal, not a failure.
	ErrDisconnected = errors.New("event channel disconnected")

	// ErrTimeout is returned by RecvTimeout when nothing arrived in time.
	ErrTimeout = errors.New("timed out waiting for event")

	ErrUnknownMode = errors.New("unknown watcher mode")
)

// RegistrationError reports a watch that could not be installed. No watcher is
// returned alongside it.
type RegistrationError struct {
	Path      string
	Recursive bool
	Err       error
}

func (e *RegistrationError) Error() string {
	kind := "watch"
	if e.Recursive {
		kind = "recursive watch"
	}

	return fmt.Sprintf("failed to register %s for %s: %v", kind, e.Path, e.Err)
}

func (e *RegistrationError) Unwrap() error {
	return e.Err
}
