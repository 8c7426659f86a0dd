package core

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// =============================================================================
// Priority: Selects the lane a task is queued on
// =============================================================================

// Priority selects the lane a task is queued on.
// It does not guarantee execution order across lanes; idle workers of
// either lane may pick up work from the other one.
type Priority int

const (
	// PriorityLow: Background lane (default)
	PriorityLow Priority = iota

	// PriorityHigh: Latency-sensitive lane, normally sized to most of the CPUs
	PriorityHigh
)

const laneCount = 2

// Lanes lists every lane in a stable order.
var Lanes = [laneCount]Priority{PriorityHigh, PriorityLow}

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// Valid reports whether p names one of the two lanes.
func (p Priority) Valid() bool {
	return p == PriorityHigh || p == PriorityLow
}

// Other returns the opposite lane.
func (p Priority) Other() Priority {
	if p == PriorityHigh {
		return PriorityLow
	}
	return PriorityHigh
}

// ParsePriority parses "high" or "low" (case-insensitive).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return PriorityHigh, nil
	case "low":
		return PriorityLow, nil
	default:
		return PriorityLow, fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// =============================================================================
// TaskID
// =============================================================================

// TaskID identifies a submitted task.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

func (id TaskID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// =============================================================================
// Poll / Computation: Explicit resumable state machines
// =============================================================================

type pollState uint8

const (
	pollPending pollState = iota
	pollReady
	pollFailed
)

// Poll is the outcome of one Resume call: still pending, ready with a
// value, or failed with an error.
type Poll[T any] struct {
	state pollState
	value T
	err   error
}

// Pending asks the scheduler to resume the computation again later.
func Pending[T any]() Poll[T] {
	return Poll[T]{state: pollPending}
}

// Ready finishes the computation with v.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{state: pollReady, value: v}
}

// Failed finishes the computation with err. A nil err is replaced by ErrTaskFailed.
func Failed[T any](err error) Poll[T] {
	if err == nil {
		err = ErrTaskFailed
	}
	return Poll[T]{state: pollFailed, err: err}
}

func (p Poll[T]) IsPending() bool { return p.state == pollPending }

// IsDone reports whether the computation finished, successfully or not.
func (p Poll[T]) IsDone() bool { return p.state != pollPending }

// Result returns the value and error of a finished Poll.
func (p Poll[T]) Result() (T, error) {
	return p.value, p.err
}

// Computation is a unit of work that can suspend and resume.
//
// Resume is called once per scheduling turn, never concurrently. It must
// not block the worker: to wait for something, return Pending and check
// again on the next turn.
type Computation[T any] interface {
	Resume(ctx context.Context) Poll[T]
}

// ComputationFunc adapts a resume function to Computation.
type ComputationFunc[T any] func(ctx context.Context) Poll[T]

func (f ComputationFunc[T]) Resume(ctx context.Context) Poll[T] {
	return f(ctx)
}

// Func wraps a plain function as a computation that finishes on its first turn.
func Func[T any](fn func(ctx context.Context) (T, error)) Computation[T] {
	return ComputationFunc[T](func(ctx context.Context) Poll[T] {
		v, err := fn(ctx)
		if err != nil {
			return Failed[T](err)
		}
		return Ready(v)
	})
}

// Yielding returns a computation that yields back to the scheduler
// `yields` times before running fn.
//
// The yield budget belongs to the returned value, not to a submission:
// submitting the same value more than once shares the budget between the
// submissions. Call Yielding again for independent tasks.
func Yielding[T any](yields int, fn func(ctx context.Context) (T, error)) Computation[T] {
	var remaining atomic.Int64
	remaining.Store(int64(yields))
	last := Func(fn)
	return ComputationFunc[T](func(ctx context.Context) Poll[T] {
		if remaining.Add(-1) >= 0 {
			return Pending[T]()
		}
		return last.Resume(ctx)
	})
}
