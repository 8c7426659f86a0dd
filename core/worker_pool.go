package core

import (
	"runtime"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"
)

// WorkerPool is the fixed set of workers bound to one lane.
//
// Each worker polls its own lane, then the other lane, and parks when
// both are empty. The pool is started at most once, lazily, by the
// Scheduler; it is never resized.
type WorkerPool struct {
	lane  Priority
	own   *laneQueue
	other *laneQueue
	s     *Scheduler

	startOnce sync.Once
	workers   atomic.Int32
	starts    atomic.Int32
	live      atomic.Int32
	active    atomic.Int32

	completed atomic.Int64
	failed    atomic.Int64
	panicked  atomic.Int64
	yields    atomic.Int64
	fallbacks atomic.Int64
}

func newWorkerPool(s *Scheduler, lane Priority) *WorkerPool {
	return &WorkerPool{
		lane:  lane,
		own:   s.queues[lane],
		other: s.queues[lane.Other()],
		s:     s,
	}
}

// spawn starts n workers. The Scheduler calls it once per lane, under startOnce.
func (p *WorkerPool) spawn(n int) {
	p.workers.Store(int32(n))
	p.starts.Add(1)
	for i := 0; i < n; i++ {
		p.s.wg.Add(1)
		p.live.Add(1)
		go p.workerLoop(i)
	}
}

// Lane returns the lane this pool is bound to.
func (p *WorkerPool) Lane() Priority { return p.lane }

// WorkerCount returns the configured number of workers, or 0 before start.
func (p *WorkerPool) WorkerCount() int { return int(p.workers.Load()) }

// IsRunning reports whether the pool has started and still has live workers.
func (p *WorkerPool) IsRunning() bool { return p.live.Load() > 0 }

func (p *WorkerPool) ActiveTaskCount() int { return int(p.active.Load()) }

func (p *WorkerPool) QueuedTaskCount() int { return p.own.Len() }

// Stats returns a snapshot of the pool's counters.
func (p *WorkerPool) Stats() LaneStats {
	starts := int(p.starts.Load())
	return LaneStats{
		Lane:        p.lane,
		Workers:     p.WorkerCount(),
		LiveWorkers: int(p.live.Load()),
		Starts:      starts,
		Started:     starts > 0,
		Queued:      p.QueuedTaskCount(),
		Active:      p.ActiveTaskCount(),
		Completed:   p.completed.Load(),
		Failed:      p.failed.Load(),
		Panicked:    p.panicked.Load(),
		Yields:      p.yields.Load(),
		Fallbacks:   p.fallbacks.Load(),
	}
}

// workerLoop is the main loop for each worker
func (p *WorkerPool) workerLoop(id int) {
	defer p.s.wg.Done()
	defer p.live.Add(-1)

	if p.s.lockOSThread {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
	}

	idle := time.NewTimer(p.s.idleInterval)
	idle.Stop()
	stopCh := p.s.ctx.Done()

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		r, ok := p.next()
		if !ok {
			if !p.park(idle, stopCh) {
				return
			}
			continue
		}
		p.execute(id, r)
	}
}

// next polls the own lane first, then the other lane.
func (p *WorkerPool) next() (*runnable, bool) {
	if r, ok := p.own.TryPop(); ok {
		p.s.metrics.RecordQueueDepth(p.lane, p.own.Len())
		return r, true
	}
	if r, ok := p.other.TryPop(); ok {
		p.fallbacks.Add(1)
		p.s.metrics.RecordFallback(p.lane, p.other.lane)
		p.s.metrics.RecordQueueDepth(p.other.lane, p.other.Len())
		p.s.logger.Debug("fallback pickup",
			F("worker_lane", p.lane.String()),
			F("task_lane", r.lane.String()),
			F("task_id", r.id.String()),
		)
		return r, true
	}
	return nil, false
}

// park waits for a wake-up on either lane or for the idle interval.
// It returns false when the scheduler is stopping.
func (p *WorkerPool) park(idle *time.Timer, stopCh <-chan struct{}) bool {
	idle.Reset(p.s.idleInterval)
	defer idle.Stop()

	select {
	case <-p.own.wake:
	case <-p.other.wake:
	case <-idle.C:
	case <-stopCh:
		return false
	}
	return true
}

// execute resumes r once. A suspended runnable goes back to its origin lane.
func (p *WorkerPool) execute(workerID int, r *runnable) {
	p.active.Add(1)
	defer p.active.Add(-1)

	startedAt := time.Now()
	r.resumes++
	outcome, perr := p.resume(r)

	if outcome == stepSuspended {
		p.yields.Add(1)
		p.s.metrics.RecordTaskYield(r.lane)
		p.s.enqueue(r)
		return
	}

	finishedAt := time.Now()
	duration := finishedAt.Sub(startedAt)
	p.s.metrics.RecordTaskDuration(r.lane, duration)

	switch {
	case perr != nil:
		p.panicked.Add(1)
		p.failed.Add(1)
		p.reportPanic(workerID, perr)
	case outcome == stepFailed:
		p.failed.Add(1)
	default:
		p.completed.Add(1)
	}

	p.s.history.Add(TaskExecutionRecord{
		TaskID:      r.id,
		Name:        r.name,
		Lane:        r.lane,
		WorkerLane:  p.lane,
		Resumes:     r.resumes,
		SubmittedAt: r.submittedAt,
		StartedAt:   startedAt,
		FinishedAt:  finishedAt,
		Duration:    duration,
		Failed:      outcome == stepFailed,
		Panicked:    perr != nil,
	})

	if perr != nil {
		r.abort(perr)
		return
	}
	r.deliver()
}

// reportPanic passes a task panic to the metrics and panic hooks. A hook
// that panics itself is logged and does not take down the worker.
func (p *WorkerPool) reportPanic(workerID int, perr *PanicError) {
	defer func() {
		if rec := recover(); rec != nil {
			p.s.logger.Error("panic hook failed",
				F("lane", p.lane.String()),
				F("worker", workerID),
				F("task_id", perr.TaskID.String()),
				F("panic", rec),
			)
		}
	}()
	p.s.metrics.RecordTaskPanic(perr.Lane, perr.Value)
	p.s.panicHandler.HandlePanic(p.s.ctx, p.lane, workerID, perr.Value, perr.Stack)
}

// resume runs one step of r and converts a panic into a *PanicError.
func (p *WorkerPool) resume(r *runnable) (outcome stepOutcome, perr *PanicError) {
	defer func() {
		if rec := recover(); rec != nil {
			outcome = stepFailed
			perr = &PanicError{
				TaskID: r.id,
				Lane:   r.lane,
				Value:  rec,
				Stack:  debug.Stack(),
			}
		}
	}()
	return r.step(p.s.ctx), nil
}
