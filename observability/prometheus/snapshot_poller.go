package prometheus

import (
	"context"
	"sync"
	"time"

	"github.com/Swind/go-lane-executor/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// SchedulerSnapshotProvider provides current scheduler stats snapshots.
type SchedulerSnapshotProvider interface {
	Stats() core.SchedulerStats
}

// SnapshotPoller periodically exports scheduler Stats() snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration

	schedulersMu sync.RWMutex
	schedulers   map[string]SchedulerSnapshotProvider

	submitted *prom.GaugeVec
	stopped   *prom.GaugeVec

	laneWorkers   *prom.GaugeVec
	laneLive      *prom.GaugeVec
	laneQueued    *prom.GaugeVec
	laneActive    *prom.GaugeVec
	laneCompleted *prom.GaugeVec
	laneFailed    *prom.GaugeVec
	lanePanicked  *prom.GaugeVec
	laneYields    *prom.GaugeVec
	laneFallbacks *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, interval time.Duration) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if interval <= 0 {
		interval = time.Second
	}

	schedulerGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "laneexec",
			Name:      name,
			Help:      help,
		}, []string{"scheduler"})
	}
	laneGauge := func(name, help string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "laneexec",
			Name:      name,
			Help:      help,
		}, []string{"scheduler", "lane"})
	}

	p := &SnapshotPoller{
		interval:   interval,
		schedulers: make(map[string]SchedulerSnapshotProvider),

		submitted: schedulerGauge("scheduler_submitted_total", "Scheduler submitted task count snapshot."),
		stopped:   schedulerGauge("scheduler_stopped", "Scheduler stopped state (1=stopped, 0=running)."),

		laneWorkers:   laneGauge("lane_workers", "Configured worker count per lane (0 before start)."),
		laneLive:      laneGauge("lane_live_workers", "Live worker goroutines per lane."),
		laneQueued:    laneGauge("lane_queued", "Queued tasks per lane."),
		laneActive:    laneGauge("lane_active", "Resumes in progress on each lane's workers."),
		laneCompleted: laneGauge("lane_completed_total", "Completed task count snapshot per lane."),
		laneFailed:    laneGauge("lane_failed_total", "Failed task count snapshot per lane."),
		lanePanicked:  laneGauge("lane_panicked_total", "Panicked task count snapshot per lane."),
		laneYields:    laneGauge("lane_yields_total", "Yield count snapshot per lane."),
		laneFallbacks: laneGauge("lane_fallbacks_total", "Tasks each lane's workers took from the other lane."),
	}

	for _, g := range []**prom.GaugeVec{
		&p.submitted, &p.stopped,
		&p.laneWorkers, &p.laneLive, &p.laneQueued, &p.laneActive,
		&p.laneCompleted, &p.laneFailed, &p.lanePanicked, &p.laneYields, &p.laneFallbacks,
	} {
		registered, err := registerCollector(reg, *g)
		if err != nil {
			return nil, err
		}
		*g = registered
	}

	return p, nil
}

// AddScheduler adds or replaces a scheduler snapshot provider by name.
func (p *SnapshotPoller) AddScheduler(name string, provider SchedulerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	name = normalizeLabel(name, "scheduler")
	p.schedulersMu.Lock()
	p.schedulers[name] = provider
	p.schedulersMu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.collectOnce()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.collectOnce()
		}
	}
}

func (p *SnapshotPoller) collectOnce() {
	p.schedulersMu.RLock()
	defer p.schedulersMu.RUnlock()

	for name, provider := range p.schedulers {
		stats := provider.Stats()
		p.submitted.WithLabelValues(name).Set(float64(stats.Submitted))
		if stats.Stopped {
			p.stopped.WithLabelValues(name).Set(1)
		} else {
			p.stopped.WithLabelValues(name).Set(0)
		}

		for _, lane := range []core.LaneStats{stats.High, stats.Low} {
			label := laneLabel(lane.Lane)
			p.laneWorkers.WithLabelValues(name, label).Set(float64(lane.Workers))
			p.laneLive.WithLabelValues(name, label).Set(float64(lane.LiveWorkers))
			p.laneQueued.WithLabelValues(name, label).Set(float64(lane.Queued))
			p.laneActive.WithLabelValues(name, label).Set(float64(lane.Active))
			p.laneCompleted.WithLabelValues(name, label).Set(float64(lane.Completed))
			p.laneFailed.WithLabelValues(name, label).Set(float64(lane.Failed))
			p.lanePanicked.WithLabelValues(name, label).Set(float64(lane.Panicked))
			p.laneYields.WithLabelValues(name, label).Set(float64(lane.Yields))
			p.laneFallbacks.WithLabelValues(name, label).Set(float64(lane.Fallbacks))
		}
	}
}
