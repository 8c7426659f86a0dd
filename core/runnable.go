package core

import (
	"context"
	"time"
)

type stepOutcome uint8

const (
	stepSuspended stepOutcome = iota
	stepDone
	stepFailed
)

// runnable is the type-erased, schedulable form of a submitted computation.
// It is owned either by one lane queue or by the one worker resuming it.
type runnable struct {
	id          TaskID
	name        string
	lane        Priority // origin lane; suspended runnables always go back here
	submittedAt time.Time
	resumes     int // only touched by the worker that currently owns it

	// step resumes the computation once; a finished outcome is held
	// until deliver so bookkeeping happens before the handle turns ready.
	step    func(ctx context.Context) stepOutcome
	deliver func()
	abort   func(err error)
}

func newRunnable[T any](name string, lane Priority, c Computation[T], h *TaskHandle[T]) *runnable {
	var (
		value T
		err   error
	)
	return &runnable{
		id:          h.id,
		name:        name,
		lane:        lane,
		submittedAt: time.Now(),
		step: func(ctx context.Context) stepOutcome {
			p := c.Resume(ctx)
			switch p.state {
			case pollPending:
				return stepSuspended
			case pollReady:
				value = p.value
				return stepDone
			default:
				err = p.err
				return stepFailed
			}
		},
		deliver: func() {
			h.complete(value, err)
		},
		abort: func(e error) {
			var zero T
			h.complete(zero, e)
		},
	}
}
