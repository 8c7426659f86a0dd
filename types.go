package laneexec

import (
	"context"

	"github.com/Swind/go-lane-executor/core"
)

// Re-export commonly used types from core package for convenience.
// This allows users to import only the laneexec package for most use cases.

// Scheduler is the two-lane executor
type Scheduler = core.Scheduler

// SchedulerConfig configures a Scheduler
type SchedulerConfig = core.SchedulerConfig

// Priority selects the lane a computation is submitted to
type Priority = core.Priority

// Computation is a resumable unit of work
type Computation[T any] = core.Computation[T]

// ComputationFunc adapts a resume function to Computation
type ComputationFunc[T any] = core.ComputationFunc[T]

// Poll is the outcome of one Resume call
type Poll[T any] = core.Poll[T]

// TaskHandle is the awaitable result of a submission
type TaskHandle[T any] = core.TaskHandle[T]

// Result is one outcome collected by WaitAllCatching
type Result[T any] = core.Result[T]

// PanicError reports a panic recovered from a computation
type PanicError = core.PanicError

// TaskID identifies a submission
type TaskID = core.TaskID

// ReplyWithResult receives the outcome of SubmitAndReply
type ReplyWithResult[T any] = core.ReplyWithResult[T]

// Priority constants
const (
	PriorityLow  Priority = core.PriorityLow
	PriorityHigh Priority = core.PriorityHigh
)

// Errors
var (
	ErrInvalidPoolSize  = core.ErrInvalidPoolSize
	ErrSizingFrozen     = core.ErrSizingFrozen
	ErrSchedulerStopped = core.ErrSchedulerStopped
	ErrTaskPanicked     = core.ErrTaskPanicked
)

// NewScheduler creates a Scheduler. A nil config uses the default sizing.
func NewScheduler(config *SchedulerConfig) (*Scheduler, error) {
	return core.NewScheduler(config)
}

// DefaultLaneSizing returns the default worker count per lane.
func DefaultLaneSizing() (high, low int) {
	return core.DefaultLaneSizing()
}

// Submit queues c on the given lane.
func Submit[T any](s *Scheduler, c Computation[T], priority Priority) *TaskHandle[T] {
	return core.Submit(s, c, priority)
}

// SubmitFunc queues a plain function on the given lane.
func SubmitFunc[T any](s *Scheduler, fn func(ctx context.Context) (T, error), priority Priority) *TaskHandle[T] {
	return core.SubmitFunc(s, fn, priority)
}

// Spawn queues c on the low lane.
func Spawn[T any](s *Scheduler, c Computation[T]) *TaskHandle[T] {
	return core.Spawn(s, c)
}

// SubmitAndReply runs task, then reply with its outcome.
func SubmitAndReply[T any](s *Scheduler, task Computation[T], taskLane Priority, reply ReplyWithResult[T], replyLane Priority) *TaskHandle[T] {
	return core.SubmitAndReply(s, task, taskLane, reply, replyLane)
}

// Func wraps a plain function as a single-step computation.
func Func[T any](fn func(ctx context.Context) (T, error)) Computation[T] {
	return core.Func(fn)
}

// Yielding returns a computation that yields its worker n times before running fn.
func Yielding[T any](n int, fn func(ctx context.Context) (T, error)) Computation[T] {
	return core.Yielding(n, fn)
}

// Pending, Ready and Failed build Poll values for custom computations.
func Pending[T any]() Poll[T]         { return core.Pending[T]() }
func Ready[T any](v T) Poll[T]        { return core.Ready(v) }
func Failed[T any](err error) Poll[T] { return core.Failed[T](err) }

// WaitAll waits for every handle and returns the values in order.
func WaitAll[T any](ctx context.Context, handles []*TaskHandle[T]) ([]T, error) {
	return core.WaitAll(ctx, handles)
}

// WaitAllCatching waits for every handle and returns one Result per handle.
func WaitAllCatching[T any](ctx context.Context, handles []*TaskHandle[T]) []Result[T] {
	return core.WaitAllCatching(ctx, handles)
}
