package core

import (
	"context"
)

// ReplyWithResult receives the outcome of a task submitted with SubmitAndReply.
type ReplyWithResult[T any] func(ctx context.Context, result T, err error)

// SubmitAndReply submits task on taskLane and, once it finishes, submits
// reply on replyLane with the task's value and error.
//
// Execution guarantee (Happens-Before):
// - The task ALWAYS finishes before the reply starts
// - The reply ALWAYS sees the final value written by the task
//
// If the task panics the reply does not run; the panic is reported
// through the returned handle as a *PanicError.
//
// Example:
//
//	SubmitAndReply(s,
//	    Func(func(ctx context.Context) (int, error) {
//	        return len("Hello"), nil
//	    }),
//	    PriorityLow,
//	    func(ctx context.Context, length int, err error) {
//	        fmt.Printf("Length: %d\n", length)
//	    },
//	    PriorityHigh,
//	)
func SubmitAndReply[T any](
	s *Scheduler,
	task Computation[T],
	taskLane Priority,
	reply ReplyWithResult[T],
	replyLane Priority,
) *TaskHandle[T] {
	if task == nil || reply == nil {
		return Submit(s, task, taskLane)
	}

	wrapped := ComputationFunc[T](func(ctx context.Context) Poll[T] {
		p := task.Resume(ctx)
		if p.IsDone() {
			result, err := p.Result()
			SubmitNamed(s, "reply", Func(func(ctx context.Context) (struct{}, error) {
				reply(ctx, result, err)
				return struct{}{}, nil
			}), replyLane)
		}
		return p
	})
	return SubmitNamed(s, resolveTaskName(task, ""), Computation[T](wrapped), taskLane)
}
