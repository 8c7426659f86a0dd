package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/Swind/go-lane-executor/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
	// Scheduler, when set, is attached to every series as a const "scheduler" label.
	Scheduler string
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskPanicTotal      *prom.CounterVec
	taskYieldTotal      *prom.CounterVec
	fallbackTotal       *prom.CounterVec
	queueDepth          *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "laneexec"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}
	var constLabels prom.Labels
	if opts.Scheduler != "" {
		constLabels = prom.Labels{"scheduler": opts.Scheduler}
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace:   namespace,
		Name:        "task_duration_seconds",
		Help:        "Duration of the final resume of each finished task, in seconds.",
		Buckets:     buckets,
		ConstLabels: constLabels,
	}, []string{"lane"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "task_panic_total",
		Help:        "Total number of task panics.",
		ConstLabels: constLabels,
	}, []string{"lane"})
	yieldVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "task_yield_total",
		Help:        "Total number of resumes that returned pending.",
		ConstLabels: constLabels,
	}, []string{"lane"})
	fallbackVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace:   namespace,
		Name:        "fallback_total",
		Help:        "Total number of tasks taken by a worker from the other lane.",
		ConstLabels: constLabels,
	}, []string{"worker_lane", "task_lane"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace:   namespace,
		Name:        "queue_depth",
		Help:        "Current lane queue depth.",
		ConstLabels: constLabels,
	}, []string{"lane"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if yieldVec, err = registerCollector(reg, yieldVec); err != nil {
		return nil, err
	}
	if fallbackVec, err = registerCollector(reg, fallbackVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskPanicTotal:      panicVec,
		taskYieldTotal:      yieldVec,
		fallbackTotal:       fallbackVec,
		queueDepth:          queueDepthVec,
	}, nil
}

// RecordTaskDuration records task execution duration.
func (m *MetricsExporter) RecordTaskDuration(lane core.Priority, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(laneLabel(lane)).Observe(duration.Seconds())
}

// RecordTaskPanic records task panic events.
func (m *MetricsExporter) RecordTaskPanic(lane core.Priority, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(laneLabel(lane)).Inc()
}

// RecordTaskYield records a resume that returned pending.
func (m *MetricsExporter) RecordTaskYield(lane core.Priority) {
	if m == nil {
		return
	}
	m.taskYieldTotal.WithLabelValues(laneLabel(lane)).Inc()
}

// RecordFallback records a worker taking a task from the other lane.
func (m *MetricsExporter) RecordFallback(workerLane, taskLane core.Priority) {
	if m == nil {
		return
	}
	m.fallbackTotal.WithLabelValues(laneLabel(workerLane), laneLabel(taskLane)).Inc()
}

// RecordQueueDepth records queue depth.
func (m *MetricsExporter) RecordQueueDepth(lane core.Priority, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(laneLabel(lane)).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func laneLabel(lane core.Priority) string {
	if !lane.Valid() {
		return "unknown"
	}
	return lane.String()
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
