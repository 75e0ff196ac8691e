package engine

import (
	"sync"

	"github.com/roach88/atomgraph/internal/atom"
)

// eventQueue is the unbounded FIFO feeding Run.
//
// Enqueue is safe from any goroutine while the Run loop dequeues. The signal
// channel lets Run wait on the queue and a context at the same time.
type eventQueue struct {
	mu     sync.Mutex
	events []atom.Event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]atom.Event, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends ev. Returns false once the queue is closed.
func (q *eventQueue) Enqueue(ev atom.Event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.events = append(q.events, ev)

	// Buffer of 1 coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front event without blocking.
func (q *eventQueue) TryDequeue() (atom.Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return atom.Event{}, false
	}
	ev := q.events[0]
	// Clear the slot so payloads can be collected.
	q.events[0] = atom.Event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}
	return ev, true
}

// Wait returns a channel that fires when events may be available, and is
// closed when the queue closes.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Close stops accepting events and wakes any waiter.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
