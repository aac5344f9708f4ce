package app

import (
	"context"
	"sync"
)

// eventQueue is the unbounded FIFO between UI senders and the Run loop.
//
// push never blocks, so a view handler can queue follow-up events while the
// loop is busy applying the current one. A closed queue still hands out the
// events queued before Close; Next reports ErrClosed only once it is empty.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	closed  bool

	// wake carries at most one token. A stale token only costs the
	// reader one extra look at pending.
	wake chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{wake: make(chan struct{}, 1)}
}

// push appends ev. It reports false once the queue is closed.
func (q *eventQueue) push(ev Event) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	q.notify()
	return true
}

// Next blocks until an event is available, the queue is closed and empty
// (ErrClosed), or ctx is done.
func (q *eventQueue) Next(ctx context.Context) (Event, error) {
	for {
		if ev, ok, closed := q.pop(); ok {
			return ev, nil
		} else if closed {
			return Event{}, ErrClosed
		}

		select {
		case <-ctx.Done():
			return Event{}, ctx.Err()
		case <-q.wake:
		}
	}
}

func (q *eventQueue) pop() (ev Event, ok, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return Event{}, false, q.closed
	}
	ev = q.pending[0]
	// Drop the reference so reply channels and answer maps can be collected.
	q.pending[0] = Event{}
	q.pending = q.pending[1:]
	if len(q.pending) == 0 {
		q.pending = nil
	}
	return ev, true, q.closed
}

// close rejects later pushes. Events already queued stay available to Next.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
}

// isClosed reports whether close has been called.
func (q *eventQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// abandon closes the queue and returns whatever was still pending.
func (q *eventQueue) abandon() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	out := q.pending
	q.pending = nil
	return out
}

func (q *eventQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
