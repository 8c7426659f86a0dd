// Package demo holds sample computations used by the laneexec CLI.
package demo

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/Swind/go-lane-executor/core"
)

// Counter counts its own resumes and finishes with the count once it
// reaches Target. Each resume optionally burns Work to simulate a busy step.
type Counter struct {
	Target int
	Work   time.Duration
	// OnResume, if set, is called with the running count on every resume.
	OnResume func(count int)

	count int
}

var _ core.Computation[int] = (*Counter)(nil)

// NewCounter returns a Counter finishing on its target-th resume.
func NewCounter(target int) *Counter {
	return &Counter{Target: target}
}

func (c *Counter) Resume(ctx context.Context) core.Poll[int] {
	c.count++
	if c.OnResume != nil {
		c.OnResume(c.count)
	}
	if c.Work > 0 {
		time.Sleep(c.Work)
	}
	if c.count < c.Target {
		return core.Pending[int]()
	}
	return core.Ready(c.count)
}

// Background is a never-finishing process that yields on every resume
// until Stop is called or the scheduler is stopping. It returns the
// number of ticks it ran.
type Background struct {
	Work time.Duration

	stop  atomic.Bool
	ticks atomic.Int64
}

var _ core.Computation[int64] = (*Background)(nil)

// Stop makes the next resume finish.
func (b *Background) Stop() { b.stop.Store(true) }

// Ticks returns the number of resumes so far.
func (b *Background) Ticks() int64 { return b.ticks.Load() }

func (b *Background) Resume(ctx context.Context) core.Poll[int64] {
	if b.stop.Load() || ctx.Err() != nil {
		return core.Ready(b.ticks.Load())
	}
	b.ticks.Add(1)
	if b.Work > 0 {
		time.Sleep(b.Work)
	}
	return core.Pending[int64]()
}

// Fibonacci computes the n-th Fibonacci number, advancing at most
// stepsPerResume terms per resume and yielding in between.
func Fibonacci(n, stepsPerResume int) core.Computation[uint64] {
	if stepsPerResume < 1 {
		stepsPerResume = 1
	}
	var (
		a, b uint64 = 0, 1
		i    int
	)
	return core.ComputationFunc[uint64](func(ctx context.Context) core.Poll[uint64] {
		for step := 0; step < stepsPerResume && i < n; step++ {
			a, b = b, a+b
			i++
		}
		if i < n {
			return core.Pending[uint64]()
		}
		return core.Ready(a)
	})
}
