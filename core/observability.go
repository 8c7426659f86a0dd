package core

import "time"

// TaskExecutionRecord captures a finished task.
type TaskExecutionRecord struct {
	TaskID      TaskID
	Name        string
	Lane        Priority // lane the task was submitted on
	WorkerLane  Priority // lane of the worker that ran the final step
	Resumes     int      // number of Resume calls, including the final one
	SubmittedAt time.Time
	StartedAt   time.Time // start of the final Resume
	FinishedAt  time.Time
	Duration    time.Duration // duration of the final Resume
	Failed      bool
	Panicked    bool
}

// LaneStats represents runtime observability state for one lane.
type LaneStats struct {
	Lane        Priority
	Workers     int // configured worker count (frozen once started)
	LiveWorkers int
	Starts      int // pool start count; never more than 1
	Started     bool
	Queued      int
	Active      int
	Completed   int64
	Failed      int64
	Panicked    int64
	Yields      int64
	Fallbacks   int64 // tasks this lane's workers took from the other lane
}

// SchedulerStats represents runtime observability state for a scheduler.
type SchedulerStats struct {
	Name      string
	Submitted int64
	Stopped   bool
	High      LaneStats
	Low       LaneStats
}
