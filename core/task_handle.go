package core

import (
	"context"
	"sync"
)

// TaskHandle is the awaitable result of a submitted computation.
//
// Dropping a handle does not cancel the computation: once submitted, it
// runs until it finishes or panics.
type TaskHandle[T any] struct {
	id   TaskID
	lane Priority

	once  sync.Once
	done  chan struct{}
	value T
	err   error
}

func newTaskHandle[T any](id TaskID, lane Priority) *TaskHandle[T] {
	return &TaskHandle[T]{
		id:   id,
		lane: lane,
		done: make(chan struct{}),
	}
}

// complete stores the outcome. Only the first call has any effect.
func (h *TaskHandle[T]) complete(v T, err error) {
	h.once.Do(func() {
		h.value = v
		h.err = err
		close(h.done)
	})
}

// ID returns the submitted task's ID.
func (h *TaskHandle[T]) ID() TaskID { return h.id }

// Lane returns the lane the task was submitted on.
func (h *TaskHandle[T]) Lane() Priority { return h.lane }

// Done is closed once the result is available.
func (h *TaskHandle[T]) Done() <-chan struct{} { return h.done }

// IsReady reports whether the result is available.
func (h *TaskHandle[T]) IsReady() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// TryResult returns the result without blocking. ok is false while the
// task is still running.
func (h *TaskHandle[T]) TryResult() (v T, err error, ok bool) {
	if !h.IsReady() {
		return v, nil, false
	}
	return h.value, h.err, true
}

// Wait blocks until the task finishes or ctx is done.
// A ctx error only stops the wait; the task keeps running. A finished
// task always returns its own result, even if ctx is already done.
func (h *TaskHandle[T]) Wait(ctx context.Context) (T, error) {
	if h.IsReady() {
		return h.value, h.err
	}
	select {
	case <-h.done:
		return h.value, h.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
