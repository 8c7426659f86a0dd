package core

import (
	"context"
	"fmt"
)

// Result is the outcome of one handle collected by WaitAllCatching.
type Result[T any] struct {
	Value T
	Err   error
}

// OK reports whether the task finished without error.
func (r Result[T]) OK() bool { return r.Err == nil }

// WaitAll blocks until every handle has finished and returns the values
// in handle order.
//
// If any task failed, the values of the others are still returned along
// with the first failure in handle order, wrapped with its index. If ctx
// ends first, the ctx error is returned; the tasks keep running.
func WaitAll[T any](ctx context.Context, handles []*TaskHandle[T]) ([]T, error) {
	values := make([]T, len(handles))
	var firstErr error
	for i, h := range handles {
		v, err := waitOne(ctx, h)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return values, ctxErr
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("task %d: %w", i, err)
			}
			continue
		}
		values[i] = v
	}
	return values, firstErr
}

// WaitAllCatching blocks until every handle has finished and returns one
// Result per handle, in handle order. A failing task never hides the
// results of the others.
func WaitAllCatching[T any](ctx context.Context, handles []*TaskHandle[T]) []Result[T] {
	results := make([]Result[T], len(handles))
	for i, h := range handles {
		v, err := waitOne(ctx, h)
		results[i] = Result[T]{Value: v, Err: err}
	}
	return results
}

func waitOne[T any](ctx context.Context, h *TaskHandle[T]) (v T, err error) {
	if h == nil {
		return v, fmt.Errorf("%w: nil task handle", ErrInvalidConfig)
	}
	return h.Wait(ctx)
}
