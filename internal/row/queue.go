package row

import "sync"

// DeltaQueue is a model's multi-producer, single-consumer delta queue: any
// request goroutine may enqueue, but the model owns exactly one flush task
// that dequeues. Ordering across keys is FIFO by enqueue order, matching
// the on-disk batch order the journal later replays.
//
// Grounded on the teacher's buffered-channel pattern for its parse/merge
// pipelines (hive/merge), generalized with a single-slot requeue buffer
// so a delta that failed mid-batch can go back to the *front* of the
// queue — something a plain channel send (which only appends to the
// back) cannot express.
type DeltaQueue struct {
	ch chan Delta

	mu      sync.Mutex
	pending *Delta
}

// NewDeltaQueue creates a queue buffering up to capacity pending deltas
// before Push blocks.
func NewDeltaQueue(capacity int) *DeltaQueue {
	return &DeltaQueue{ch: make(chan Delta, capacity)}
}

// Push enqueues d at the back of the queue. Safe for concurrent callers.
func (q *DeltaQueue) Push(d Delta) {
	q.ch <- d
}

// Requeue puts d back at the front of the queue, ahead of anything
// already enqueued. Only the single consumer goroutine may call this.
func (q *DeltaQueue) Requeue(d Delta) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = &d
}

// Dequeue blocks until a delta is available, preferring a requeued delta
// over the channel's next enqueued one.
func (q *DeltaQueue) Dequeue() Delta {
	q.mu.Lock()
	if q.pending != nil {
		d := *q.pending
		q.pending = nil
		q.mu.Unlock()
		return d
	}
	q.mu.Unlock()
	return <-q.ch
}

// DequeueOrStop behaves like Dequeue but also selects on stop, returning
// ok=false if stop fires before a delta is available. Used by the flush
// task to block waiting for work without leaking a goroutine on shutdown.
func (q *DeltaQueue) DequeueOrStop(stop <-chan struct{}) (d Delta, ok bool) {
	q.mu.Lock()
	if q.pending != nil {
		d = *q.pending
		q.pending = nil
		q.mu.Unlock()
		return d, true
	}
	q.mu.Unlock()
	// Prefer a ready delta over stop: Go's select among multiple ready
	// cases picks uniformly at random, which would let a shutdown signal
	// race ahead of work already sitting in the channel. A non-blocking
	// pre-check gives the channel priority whenever it already has
	// something to offer.
	select {
	case d = <-q.ch:
		return d, true
	default:
	}
	select {
	case d = <-q.ch:
		return d, true
	case <-stop:
		return Delta{}, false
	}
}

// Len reports a snapshot of the number of deltas currently queued
// (requeued-pending plus channel-buffered). Concurrent Push/Dequeue calls
// may race with this count; callers must treat it as a lower bound at the
// instant of the call, never an exact size for synchronization.
func (q *DeltaQueue) Len() int {
	q.mu.Lock()
	n := len(q.ch)
	if q.pending != nil {
		n++
	}
	q.mu.Unlock()
	return n
}
