package core

import (
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4

	// wakeBufferSize bounds pending wake-ups per lane. A dropped wake-up
	// only costs latency: parked workers re-poll after the idle interval.
	wakeBufferSize = 64
)

// laneQueue is the unbounded FIFO of runnables for one lane.
// Each lane has its own mutex, so producers and consumers of different
// lanes never contend.
type laneQueue struct {
	lane  Priority
	mu    sync.Mutex
	items []*runnable
	wake  chan struct{}
}

func newLaneQueue(lane Priority) *laneQueue {
	return &laneQueue{
		lane:  lane,
		items: make([]*runnable, 0, defaultQueueCap),
		wake:  make(chan struct{}, wakeBufferSize),
	}
}

// Push appends r and wakes one parked worker. It never blocks.
func (q *laneQueue) Push(r *runnable) int {
	q.mu.Lock()
	q.items = append(q.items, r)
	n := len(q.items)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
		// Buffer full; enough workers are already being woken.
	}
	return n
}

// TryPop removes the oldest runnable, or reports false immediately when empty.
func (q *laneQueue) TryPop() (*runnable, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	r := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = nil
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return r, true
}

// Drain removes and returns every queued runnable.
func (q *laneQueue) Drain() []*runnable {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := q.items
	q.items = make([]*runnable, 0, defaultQueueCap)
	return out
}

func (q *laneQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *laneQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *laneQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]*runnable, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]*runnable, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}
