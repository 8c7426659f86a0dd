package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Scheduler is the two-lane cooperative executor.
//
// Work is submitted with Submit (or Spawn) onto the high or low lane.
// Each lane has its own queue and its own WorkerPool; a pool is started
// lazily, exactly once, by the first submission that targets its lane or
// by Bootstrap. Idle workers of one lane run work queued on the other.
//
// A Scheduler is safe for concurrent use.
type Scheduler struct {
	name string

	queues [laneCount]*laneQueue
	pools  [laneCount]*WorkerPool

	// sizing is read and frozen by the first start of each lane.
	sizingMu sync.Mutex
	sizing   [laneCount]int
	frozen   [laneCount]bool

	idleInterval time.Duration
	lockOSThread bool

	logger       Logger
	metrics      Metrics
	panicHandler PanicHandler
	history      executionHistory

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// stateMu orders submissions against Stop: submitters hold the read
	// lock from the stopped check until the runnable is queued.
	stateMu sync.RWMutex
	stopped bool

	submitted atomic.Int64
}

// NewScheduler creates a Scheduler. No worker is started until the first
// submission or an explicit Bootstrap / Start. A nil config uses
// DefaultSchedulerConfig.
func NewScheduler(config *SchedulerConfig) (*Scheduler, error) {
	cfg, err := config.withDefaults()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		name:         cfg.Name,
		idleInterval: cfg.IdleInterval,
		lockOSThread: cfg.LockOSThread,
		logger:       cfg.Logger,
		metrics:      cfg.Metrics,
		panicHandler: cfg.PanicHandler,
		history:      newExecutionHistory(cfg.HistoryCapacity),
		ctx:          ctx,
		cancel:       cancel,
	}
	s.sizing[PriorityHigh] = cfg.HighWorkers
	s.sizing[PriorityLow] = cfg.LowWorkers

	for _, lane := range Lanes {
		s.queues[lane] = newLaneQueue(lane)
	}
	for _, lane := range Lanes {
		s.pools[lane] = newWorkerPool(s, lane)
	}
	return s, nil
}

// Name returns the scheduler name used in logs.
func (s *Scheduler) Name() string { return s.name }

// Pool returns the worker pool of a lane.
func (s *Scheduler) Pool(lane Priority) *WorkerPool {
	return s.pools[normalizeLane(lane)]
}

// Sizing returns the current worker count per lane.
func (s *Scheduler) Sizing() (high, low int) {
	s.sizingMu.Lock()
	defer s.sizingMu.Unlock()
	return s.sizing[PriorityHigh], s.sizing[PriorityLow]
}

// Submit queues c on the lane selected by priority and returns its handle
// without waiting for execution to start. The lane's pool is started on
// first use. After Stop the handle fails with ErrSchedulerStopped.
func Submit[T any](s *Scheduler, c Computation[T], priority Priority) *TaskHandle[T] {
	return SubmitNamed(s, "", c, priority)
}

// SubmitNamed is Submit with an explicit name for logs and execution history.
func SubmitNamed[T any](s *Scheduler, name string, c Computation[T], priority Priority) *TaskHandle[T] {
	lane := normalizeLane(priority)
	h := newTaskHandle[T](GenerateTaskID(), lane)
	if c == nil {
		var zero T
		h.complete(zero, fmt.Errorf("%w: nil computation", ErrInvalidConfig))
		return h
	}
	r := newRunnable(resolveTaskName(c, name), lane, c, h)

	s.stateMu.RLock()
	defer s.stateMu.RUnlock()

	if s.stopped {
		r.abort(ErrSchedulerStopped)
		return h
	}

	s.ensureStarted(lane)
	s.submitted.Add(1)
	s.enqueue(r)
	return h
}

// SubmitFunc submits a plain function as a single-step computation.
func SubmitFunc[T any](s *Scheduler, fn func(ctx context.Context) (T, error), priority Priority) *TaskHandle[T] {
	return Submit(s, Func(fn), priority)
}

// Spawn submits c on the low lane.
func Spawn[T any](s *Scheduler, c Computation[T]) *TaskHandle[T] {
	return Submit(s, c, PriorityLow)
}

// enqueue puts r back on its origin lane.
func (s *Scheduler) enqueue(r *runnable) {
	depth := s.queues[r.lane].Push(r)
	s.metrics.RecordQueueDepth(r.lane, depth)
}

// ensureStarted starts the lane's pool once, freezing its sizing.
// Callers hold stateMu.RLock and have checked that the scheduler is running.
func (s *Scheduler) ensureStarted(lane Priority) {
	pool := s.pools[lane]
	pool.startOnce.Do(func() {
		s.sizingMu.Lock()
		n := s.sizing[lane]
		s.frozen[lane] = true
		s.sizingMu.Unlock()

		pool.spawn(n)
		s.logger.Info("lane started",
			F("scheduler", s.name),
			F("lane", lane.String()),
			F("workers", n),
		)
	})
}

// Bootstrap sizes both lanes and pre-warms them by running a no-op task
// on each, returning once both have completed.
//
// Sizes must be at least 1. A lane that has already started keeps its
// worker count; asking for a different one returns ErrSizingFrozen.
func (s *Scheduler) Bootstrap(ctx context.Context, high, low int) error {
	if high < 1 || low < 1 {
		return fmt.Errorf("%w: high=%d low=%d", ErrInvalidPoolSize, high, low)
	}

	want := [laneCount]int{}
	want[PriorityHigh] = high
	want[PriorityLow] = low

	s.sizingMu.Lock()
	for _, lane := range Lanes {
		if s.frozen[lane] && s.sizing[lane] != want[lane] {
			got := s.sizing[lane]
			s.sizingMu.Unlock()
			return fmt.Errorf("%w: %s lane runs %d workers, requested %d", ErrSizingFrozen, lane, got, want[lane])
		}
	}
	for _, lane := range Lanes {
		s.sizing[lane] = want[lane]
		s.frozen[lane] = true
	}
	s.sizingMu.Unlock()

	noop := Func(func(context.Context) (struct{}, error) { return struct{}{}, nil })
	handles := []*TaskHandle[struct{}]{
		SubmitNamed(s, "bootstrap-high", noop, PriorityHigh),
		SubmitNamed(s, "bootstrap-low", noop, PriorityLow),
	}
	if _, err := WaitAll(ctx, handles); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	return nil
}

// Start bootstraps both lanes with the configured sizing.
func (s *Scheduler) Start(ctx context.Context) error {
	high, low := s.Sizing()
	return s.Bootstrap(ctx, high, low)
}

// Stop stops every worker and fails queued tasks with ErrSchedulerStopped.
// Resumes already in progress finish first. Stop is idempotent.
//
// Stop waits for the workers, so calling it from inside a computation
// deadlocks. A computation that needs to stop its scheduler should call
// Stop from a new goroutine.
func (s *Scheduler) Stop() {
	s.stateMu.Lock()
	if s.stopped {
		s.stateMu.Unlock()
		return
	}
	s.stopped = true
	s.stateMu.Unlock()

	s.cancel()
	s.wg.Wait()

	dropped := 0
	for _, lane := range Lanes {
		for _, r := range s.queues[lane].Drain() {
			r.abort(ErrSchedulerStopped)
			dropped++
		}
		s.metrics.RecordQueueDepth(lane, 0)
	}

	s.logger.Info("scheduler stopped",
		F("scheduler", s.name),
		F("failed_queued", dropped),
	)
}

// IsStopped reports whether Stop has been called.
func (s *Scheduler) IsStopped() bool {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.stopped
}

// LaneStats returns a snapshot of one lane.
func (s *Scheduler) LaneStats(lane Priority) LaneStats {
	return s.pools[normalizeLane(lane)].Stats()
}

// Stats returns a snapshot of both lanes.
func (s *Scheduler) Stats() SchedulerStats {
	return SchedulerStats{
		Name:      s.name,
		Submitted: s.submitted.Load(),
		Stopped:   s.IsStopped(),
		High:      s.LaneStats(PriorityHigh),
		Low:       s.LaneStats(PriorityLow),
	}
}

// RecentExecutions returns up to limit finished tasks, newest first.
// limit <= 0 returns everything retained.
func (s *Scheduler) RecentExecutions(limit int) []TaskExecutionRecord {
	return s.history.Recent(limit)
}

// LastExecution returns the most recently finished task.
func (s *Scheduler) LastExecution() (TaskExecutionRecord, bool) {
	return s.history.Last()
}

// normalizeLane maps out-of-range priorities to the low lane.
func normalizeLane(p Priority) Priority {
	if p.Valid() {
		return p
	}
	return PriorityLow
}
