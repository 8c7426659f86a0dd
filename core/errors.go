package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPoolSize is returned when a lane is sized below one worker.
	ErrInvalidPoolSize = errors.New("laneexec: pool size must be at least 1")

	// ErrInvalidConfig is returned for any other bad SchedulerConfig value.
	ErrInvalidConfig = errors.New("laneexec: invalid scheduler config")

	// ErrInvalidPriority is returned when a priority does not name a lane.
	ErrInvalidPriority = errors.New("laneexec: invalid priority")

	// ErrSizingFrozen is returned by Bootstrap when a lane already started
	// with a different worker count.
	ErrSizingFrozen = errors.New("laneexec: lane sizing is frozen once the lane has started")

	// ErrSchedulerStopped fails tasks submitted after Stop, or still queued when Stop ran.
	ErrSchedulerStopped = errors.New("laneexec: scheduler stopped")

	// ErrTaskPanicked matches every *PanicError.
	ErrTaskPanicked = errors.New("laneexec: task panicked")

	// ErrTaskFailed is the failure used when a computation fails with a nil error.
	ErrTaskFailed = errors.New("laneexec: task failed")
)

// PanicError is delivered to a TaskHandle whose computation panicked.
type PanicError struct {
	TaskID TaskID
	Lane   Priority
	Value  any
	Stack  []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("task %s on %s lane panicked: %v", e.TaskID, e.Lane, e.Value)
}

// Unwrap exposes ErrTaskPanicked and, when the panic value is an error, that error.
func (e *PanicError) Unwrap() []error {
	if err, ok := e.Value.(error); ok {
		return []error{ErrTaskPanicked, err}
	}
	return []error{ErrTaskPanicked}
}
