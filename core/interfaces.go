package core

import (
	"context"
	"fmt"
	"runtime"
	"time"
)

// =============================================================================
// PanicHandler: Interface for handling task panics
// =============================================================================

// PanicHandler is called when a computation panics during Resume.
// The handle of the panicking task already carries a *PanicError; the
// handler is for logging and alerting.
//
// Implementations should be thread-safe as they may be called concurrently.
type PanicHandler interface {
	// HandlePanic is called when a task panics.
	//
	// Parameters:
	// - ctx: The scheduler context
	// - lane: The lane of the worker that ran the task
	// - workerID: The ID of the worker within its lane
	// - panicInfo: The panic value recovered from the task
	// - stackTrace: The stack trace at the time of panic
	HandlePanic(ctx context.Context, lane Priority, workerID int, panicInfo any, stackTrace []byte)
}

// DefaultPanicHandler logs panics through a Logger.
type DefaultPanicHandler struct {
	Logger Logger
}

// HandlePanic logs the panic value and stack trace at error level.
func (h *DefaultPanicHandler) HandlePanic(ctx context.Context, lane Priority, workerID int, panicInfo any, stackTrace []byte) {
	logger := h.Logger
	if logger == nil {
		logger = NewDefaultLogger()
	}
	logger.Error("task panicked",
		F("lane", lane.String()),
		F("worker", workerID),
		F("panic", fmt.Sprint(panicInfo)),
		F("stack", string(stackTrace)),
	)
}

// =============================================================================
// Metrics: Interface for observability and monitoring
// =============================================================================

// Metrics defines the interface for collecting executor metrics.
// Implementations can send metrics to monitoring systems (see observability/prometheus).
//
// Methods are called from worker goroutines and the submit path; they
// should be non-blocking and fast.
type Metrics interface {
	// RecordTaskDuration records how long the final Resume of a task took.
	RecordTaskDuration(lane Priority, duration time.Duration)

	// RecordTaskPanic records that a task panicked during execution.
	RecordTaskPanic(lane Priority, panicInfo any)

	// RecordTaskYield records a Resume that returned Pending.
	RecordTaskYield(lane Priority)

	// RecordFallback records a worker of workerLane running a task from taskLane.
	RecordFallback(workerLane, taskLane Priority)

	// RecordQueueDepth records the current depth of a lane queue.
	RecordQueueDepth(lane Priority, depth int)
}

// NilMetrics provides a no-op metrics implementation that does nothing.
// This is the default when no metrics interface is provided.
type NilMetrics struct{}

func (m *NilMetrics) RecordTaskDuration(lane Priority, duration time.Duration) {}
func (m *NilMetrics) RecordTaskPanic(lane Priority, panicInfo any)             {}
func (m *NilMetrics) RecordTaskYield(lane Priority)                            {}
func (m *NilMetrics) RecordFallback(workerLane, taskLane Priority)             {}
func (m *NilMetrics) RecordQueueDepth(lane Priority, depth int)                {}

// =============================================================================
// SchedulerConfig: Configuration for Scheduler
// =============================================================================

const (
	// DefaultIdleInterval is how long an idle worker parks before re-polling both lanes.
	DefaultIdleInterval = 100 * time.Millisecond

	defaultHistoryCapacity = 100
)

// SchedulerConfig holds configuration options for Scheduler.
// Zero values mean "use the default"; negative values are rejected.
type SchedulerConfig struct {
	// Name labels log lines. Defaults to "laneexec".
	Name string

	// HighWorkers and LowWorkers size the two lanes.
	// Defaults come from DefaultLaneSizing.
	HighWorkers int
	LowWorkers  int

	// IdleInterval bounds how long an idle worker parks before polling again.
	IdleInterval time.Duration

	// LockOSThread pins every worker goroutine to its own OS thread.
	LockOSThread bool

	// HistoryCapacity is the number of finished tasks kept for RecentExecutions.
	HistoryCapacity int

	// Logger defaults to NoOpLogger.
	Logger Logger

	// PanicHandler defaults to DefaultPanicHandler logging through Logger.
	PanicHandler PanicHandler

	// Metrics defaults to NilMetrics.
	Metrics Metrics
}

// DefaultLaneSizing reserves most of the machine for the high lane and a
// single worker for background work: high = max(1, NumCPU-2), low = 1.
func DefaultLaneSizing() (high, low int) {
	return max(1, runtime.NumCPU()-2), 1
}

// DefaultSchedulerConfig returns a config with default sizing and handlers.
func DefaultSchedulerConfig() *SchedulerConfig {
	high, low := DefaultLaneSizing()
	logger := NewNoOpLogger()
	return &SchedulerConfig{
		Name:            "laneexec",
		HighWorkers:     high,
		LowWorkers:      low,
		IdleInterval:    DefaultIdleInterval,
		HistoryCapacity: defaultHistoryCapacity,
		Logger:          logger,
		PanicHandler:    &DefaultPanicHandler{Logger: logger},
		Metrics:         &NilMetrics{},
	}
}

// withDefaults validates c and returns a copy with defaults filled in.
func (c *SchedulerConfig) withDefaults() (*SchedulerConfig, error) {
	out := DefaultSchedulerConfig()
	if c == nil {
		return out, nil
	}

	if c.HighWorkers < 0 || c.LowWorkers < 0 {
		return nil, fmt.Errorf("%w: high=%d low=%d", ErrInvalidPoolSize, c.HighWorkers, c.LowWorkers)
	}
	if c.IdleInterval < 0 {
		return nil, fmt.Errorf("%w: idle interval %v is negative", ErrInvalidConfig, c.IdleInterval)
	}
	if c.HistoryCapacity < 0 {
		return nil, fmt.Errorf("%w: history capacity %d is negative", ErrInvalidConfig, c.HistoryCapacity)
	}

	if c.Name != "" {
		out.Name = c.Name
	}
	if c.HighWorkers > 0 {
		out.HighWorkers = c.HighWorkers
	}
	if c.LowWorkers > 0 {
		out.LowWorkers = c.LowWorkers
	}
	if c.IdleInterval > 0 {
		out.IdleInterval = c.IdleInterval
	}
	if c.HistoryCapacity > 0 {
		out.HistoryCapacity = c.HistoryCapacity
	}
	out.LockOSThread = c.LockOSThread
	if c.Logger != nil {
		out.Logger = c.Logger
		out.PanicHandler = &DefaultPanicHandler{Logger: c.Logger}
	}
	if c.PanicHandler != nil {
		out.PanicHandler = c.PanicHandler
	}
	if c.Metrics != nil {
		out.Metrics = c.Metrics
	}
	return out, nil
}
