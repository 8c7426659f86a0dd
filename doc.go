// Package laneexec provides a two-lane cooperative task executor for Go.
//
// Work is submitted as a Computation onto one of two lanes, High or Low.
// Each lane has its own FIFO queue and its own pool of worker goroutines.
// Pools are started lazily on the first submission to their lane (or all
// at once with Bootstrap / Start). A worker runs its own lane first and
// falls back to the other lane when its own is empty, so idle capacity is
// never wasted.
//
// # Quick Start
//
// Create a scheduler and stop it when done:
//
//	s, err := laneexec.NewScheduler(nil) // default sizing
//	if err != nil {
//		return err
//	}
//	defer s.Stop()
//
// Submit work and wait for the results:
//
//	h := laneexec.SubmitFunc(s, func(ctx context.Context) (int, error) {
//		return 42, nil
//	}, laneexec.PriorityHigh)
//	v, err := h.Wait(ctx)
//
// # Key Concepts
//
// Computation: a resumable unit of work. Resume returns Pending to yield
// its worker; the scheduler puts it back on the lane it was submitted to
// and resumes it later. Func and Yielding build computations from plain
// functions.
//
// TaskHandle: the awaitable result of a submission. Dropping a handle does
// not cancel the computation.
//
// Priority: PriorityHigh or PriorityLow. Spawn submits on the low lane.
//
// # Failure Handling
//
// A panic inside Resume is recovered at the worker boundary and delivered
// through the handle as a *PanicError; the worker keeps running. WaitAll
// returns the first failure, WaitAllCatching returns one Result per handle.
//
// # Sizing
//
// By default the high lane gets max(1, NumCPU-2) workers and the low lane
// gets 1. Sizing is frozen the first time a lane starts.
package laneexec
