package subscription

import (
	"sync"

	"github.com/roach88/cylcview/internal/deltas"
)

// eventType distinguishes loop events.
type eventType int

const (
	eventBatch eventType = iota + 1
	eventStreamError
	eventComplete
	eventRestart
	eventReset
)

// event is one unit of work for the View loop.
type event struct {
	typ    eventType
	subID  string
	batch  *deltas.Batch
	err    error
	params Params
}

// eventQueue is an unbounded, thread-safe FIFO.
//
// Stream callbacks enqueue from arbitrary goroutines; only the View loop
// dequeues. The buffered signal channel (size 1) coalesces wakeups and is
// closed on Close so a waiting loop wakes up.
type eventQueue struct {
	mu     sync.Mutex
	events []event
	closed bool
	signal chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]event, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends e. Returns false once the queue is closed.
func (q *eventQueue) Enqueue(e event) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.events = append(q.events, e)

	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front event without blocking.
func (q *eventQueue) TryDequeue() (event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return event{}, false
	}

	e := q.events[0]
	// Release the batch pointer held by the backing array.
	q.events[0] = event{}
	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Wait returns a channel that fires when events may be available or the
// queue was closed.
func (q *eventQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued events.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Closed reports whether Close was called.
func (q *eventQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further events and wakes the loop.
func (q *eventQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}
