package engine

import (
	"sync"

	"github.com/roach88/selq/internal/ir"
)

// mutationQueue is a thread-safe FIFO of applied writes waiting to be
// folded into live queries.
//
// The queue is unbounded so that writers never block on slow
// subscribers. Writers enqueue from any goroutine; only the Run loop
// dequeues. The signal channel lets Run wait on the queue and a context
// in the same select.
type mutationQueue struct {
	mu      sync.Mutex
	pending []ir.Mutation
	closed  bool
	signal  chan struct{} // Buffered, size 1
}

func newMutationQueue() *mutationQueue {
	return &mutationQueue{
		pending: make([]ir.Mutation, 0, 64),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends m. Returns false if the queue is closed.
func (q *mutationQueue) Enqueue(m ir.Mutation) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.pending = append(q.pending, m)

	// Coalesce: one buffered signal is enough to wake Run.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue removes the front mutation without blocking.
func (q *mutationQueue) TryDequeue() (ir.Mutation, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return ir.Mutation{}, false
	}

	m := q.pending[0]
	// Drop the reference so the record data can be collected.
	q.pending[0] = ir.Mutation{}
	if len(q.pending) == 1 {
		q.pending = q.pending[:0]
	} else {
		q.pending = q.pending[1:]
	}
	return m, true
}

// Wait returns a channel that fires when mutations may be available. It
// is closed once the queue is closed.
func (q *mutationQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending mutations.
func (q *mutationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Closed reports whether Close has been called.
func (q *mutationQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops accepting mutations and wakes any waiter.
func (q *mutationQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
