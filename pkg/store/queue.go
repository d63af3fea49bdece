package store

import "sync"

// delivery is either a committed change or a flush barrier.
type delivery struct {
	change  *Change
	barrier chan struct{}
}

// changeQueue is an unbounded FIFO of deliveries for one observer.
//
// Dispatch must never wait for an observer, so Enqueue only appends and
// signals. The signal channel has a buffer of one and coalesces wake-ups.
type changeQueue struct {
	mu     sync.Mutex
	items  []delivery
	closed bool
	signal chan struct{}
}

func newChangeQueue() *changeQueue {
	return &changeQueue{
		items:  make([]delivery, 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue appends d. It returns false once the queue is closed.
func (q *changeQueue) Enqueue(d delivery) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.items = append(q.items, d)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// Next pops the front delivery. When the queue is empty it reports whether
// the queue was closed, in the same critical section.
func (q *changeQueue) Next() (d delivery, ok bool, closed bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return delivery{}, false, q.closed
	}

	d = q.items[0]
	// Clear the slot so the state snapshots can be collected.
	q.items[0] = delivery{}
	if len(q.items) == 1 {
		q.items = q.items[:0]
	} else {
		q.items = q.items[1:]
	}
	return d, true, false
}

// Wait returns a channel that fires when deliveries may be available.
// It is closed by Close.
func (q *changeQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending deliveries.
func (q *changeQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Close stops accepting deliveries. Pending ones are still drained.
func (q *changeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}
