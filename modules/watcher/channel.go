package watcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Leantar/fswatchbench/modules/notifier"
)

// queue is an unbounded multi-producer single-consumer buffer. Producers never
// block; the consumer waits on ready, which holds at most one pending wakeup.
type queue struct {
	mu       *sync.Mutex
	items    []notifier.Result
	ready    chan struct{}
	closed   bool
	detached bool
}

func newChannel() (*sender, *Receiver) {
	q := &queue{
		mu:    &sync.Mutex{},
		ready: make(chan struct{}, 1),
	}

	return &sender{q: q}, &Receiver{q: q}
}

func (q *queue) wake() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

// sender is the producer end handed to the backend handler.
type sender struct {
	q *queue
}

// Send appends r and returns immediately. It reports false when r was
// discarded because either end is gone.
func (s *sender) Send(r notifier.Result) bool {
	s.q.mu.Lock()
	if s.q.closed || s.q.detached {
		s.q.mu.Unlock()
		return false
	}
	s.q.items = append(s.q.items, r)
	s.q.mu.Unlock()

	s.q.wake()

	return true
}

func (s *sender) Handler() notifier.Handler {
	return func(r notifier.Result) {
		s.Send(r)
	}
}

// Close ends the stream. Buffered results stay receivable.
func (s *sender) Close() {
	s.q.mu.Lock()
	s.q.closed = true
	s.q.mu.Unlock()

	s.q.wake()
}

// Receiver is the consumer end of a watcher's event stream. It must be used
// from one goroutine at a time.
type Receiver struct {
	q *queue
}

// TryRecv returns the next buffered result without waiting. ok is false when
// nothing is buffered; err is ErrDisconnected once the stream has ended.
func (r *Receiver) TryRecv() (res notifier.Result, ok bool, err error) {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	if len(r.q.items) > 0 {
		res = r.q.items[0]
		r.q.items[0] = notifier.Result{}
		r.q.items = r.q.items[1:]
		if len(r.q.items) == 0 {
			r.q.items = nil
		}

		return res, true, nil
	}

	if r.q.closed || r.q.detached {
		return res, false, ErrDisconnected
	}

	return res, false, nil
}

// Recv waits for the next result until ctx is done.
func (r *Receiver) Recv(ctx context.Context) (notifier.Result, error) {
	for {
		res, ok, err := r.TryRecv()
		if ok || err != nil {
			return res, err
		}

		select {
		case <-r.q.ready:
		case <-ctx.Done():
			return notifier.Result{}, ctx.Err()
		}
	}
}

// RecvTimeout waits at most d for the next result. It returns ErrTimeout when
// nothing arrived, callers are expected to retry.
func (r *Receiver) RecvTimeout(d time.Duration) (notifier.Result, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	res, err := r.Recv(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return res, ErrTimeout
	}

	return res, err
}

// Len reports how many results are buffered.
func (r *Receiver) Len() int {
	r.q.mu.Lock()
	defer r.q.mu.Unlock()

	return len(r.q.items)
}

// Close detaches the receiver. Later sends are discarded and the buffer is
// released.
func (r *Receiver) Close() {
	r.q.mu.Lock()
	r.q.detached = true
	r.q.items = nil
	r.q.mu.Unlock()
}
