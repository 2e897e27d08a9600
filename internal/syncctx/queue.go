// Package syncctx provides the deferred action queue that replays work on the
// frame thread.
//
// A Queue is a mailbox: any goroutine may Enqueue, but items only execute
// when the owning frame thread calls Drain. Drain swaps the pending list out
// under the lock and runs it unlocked, so items enqueued while a drain is
// running land in the fresh list and wait for the next Drain.
package syncctx

import "sync"

// WorkItem is a zero-argument unit of deferred work.
type WorkItem func()

// Queue is a thread-safe FIFO of work items drained on the frame thread.
//
// The queue is unbounded so that work raised from inside a drain pass never
// blocks the frame thread.
type Queue struct {
	mu     sync.Mutex
	items  []WorkItem
	closed bool
	signal chan struct{} // buffered, size 1
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		items:  make([]WorkItem, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends fn to the pending list.
// Thread-safe: may be called from any goroutine, including inside Drain.
// Returns false if the queue is closed or fn is nil.
func (q *Queue) Enqueue(fn WorkItem) bool {
	if fn == nil {
		return false
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.items = append(q.items, fn)

	// Non-blocking: the size-1 buffer coalesces signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Drain runs every item pending at the moment of the call, in enqueue order,
// on the calling goroutine. Returns the number of items run.
// Not reentrant: an item must not call Drain on its own queue.
func (q *Queue) Drain() int {
	q.mu.Lock()
	batch := q.items
	q.items = make([]WorkItem, 0, cap(batch))
	q.mu.Unlock()

	for i, fn := range batch {
		batch[i] = nil
		fn()
	}
	return len(batch)
}

// Wait returns a channel that signals when items may be pending.
// Closed once the queue is closed.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending items.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Closed reports whether Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close rejects further enqueues. Items already pending still run on the
// next Drain.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
