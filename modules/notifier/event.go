package notifier

import (
	"fmt"
	"time"
)

type Kind string

const (
	KindCreate Kind = "CREATE"
	KindModify Kind = "MODIFY"
	KindRemove Kind = "REMOVE"
	KindOther  Kind = "OTHER"
)

// Event is a single change reported by a backend. Paths holds one or more
// absolute paths in the order the backend reported them.
type Event struct {
	Kind  Kind
	Paths []string
	Time  time.Time
}

func (e Event) String() string {
	return fmt.Sprintf("%s %v", e.Kind, e.Paths)
}

// Result is either an Event or a backend error, never both.
type Result struct {
	Event Event
	Err   error
}

func (r Result) IsErr() bool {
	return r.Err != nil
}

// BackendError is a failure reported asynchronously by a backend. It does not
// end the watch.
type BackendError struct {
	Backend string
	Err     error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("%s backend: %v", e.Backend, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

func newEvent(kind Kind, paths ...string) Event {
	return Event{
		Kind:  kind,
		Paths: paths,
		Time:  time.Now(),
	}
}
