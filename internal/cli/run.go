package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/Swind/go-lane-executor/core"
	"github.com/Swind/go-lane-executor/internal/config"
	"github.com/Swind/go-lane-executor/internal/demo"
	obs "github.com/Swind/go-lane-executor/observability/prometheus"
	"github.com/Swind/go-lane-executor/observability/zaplog"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type runOptions struct {
	tasks      int
	yields     int
	panics     int
	background bool
	hold       time.Duration
}

func newRunCommand(v *viper.Viper) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a mixed-priority demo workload",
		Long: `Run a demo workload on a fresh scheduler and print per-lane results.

Examples:
  # Default sizing, 16 tasks
  laneexec run

  # Two high workers, one low worker, tasks that yield 3 times each
  laneexec run --high 2 --low 1 --yields 3

  # Expose Prometheus metrics while the workload runs
  laneexec run --metrics-addr :2112 --hold 30s`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(v, file)
			if err != nil {
				return err
			}
			return runWorkload(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg, opts)
		},
	}

	flags := cmd.Flags()
	flags.Int("high", 0, "high lane workers (default from config)")
	flags.Int("low", 0, "low lane workers (default from config)")
	flags.String("metrics-addr", "", "serve /metrics on this address")
	flags.BoolVar(&opts.background, "background", false, "run a background process on the low lane until the workload finishes")
	flags.IntVar(&opts.tasks, "tasks", 16, "number of tasks, alternating lanes")
	flags.IntVar(&opts.yields, "yields", 2, "times each task yields before finishing")
	flags.IntVar(&opts.panics, "panics", 1, "number of tasks that panic")
	flags.DurationVar(&opts.hold, "hold", 0, "keep serving metrics this long after the workload")

	_ = v.BindPFlag("scheduler.high_workers", flags.Lookup("high"))
	_ = v.BindPFlag("scheduler.low_workers", flags.Lookup("low"))
	_ = v.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
	return cmd
}

func runWorkload(ctx context.Context, out, logOut io.Writer, cfg *config.Config, opts *runOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	zl := zaplog.NewJSON(logOut, zaplog.ParseLevel(cfg.Logging.Level))
	logger := zaplog.New(zl)
	defer func() { _ = logger.Sync() }()

	reg := prom.NewRegistry()
	exporter, err := obs.NewMetricsExporter("laneexec", reg, obs.ExporterOptions{Scheduler: cfg.Scheduler.Name})
	if err != nil {
		return fmt.Errorf("metrics exporter: %w", err)
	}

	s, err := core.NewScheduler(cfg.CoreConfig(logger, exporter))
	if err != nil {
		return err
	}
	defer s.Stop()

	poller, err := obs.NewSnapshotPoller(reg, cfg.Metrics.PollInterval())
	if err != nil {
		return fmt.Errorf("snapshot poller: %w", err)
	}
	poller.AddScheduler(s.Name(), s)
	poller.Start(ctx)
	defer poller.Stop()

	if cfg.Metrics.Addr != "" {
		stop, err := serveMetrics(cfg.Metrics.Addr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if err := s.Start(ctx); err != nil {
		return err
	}

	var bg *demo.Background
	var bgHandle *core.TaskHandle[int64]
	if opts.background {
		bg = &demo.Background{}
		bgHandle = core.Spawn(s, core.Computation[int64](bg))
	}

	handles := make([]*core.TaskHandle[uint64], 0, opts.tasks)
	for i := 0; i < opts.tasks; i++ {
		lane := core.Lanes[i%len(core.Lanes)]
		var c core.Computation[uint64]
		if i < opts.panics {
			c = core.Func(func(ctx context.Context) (uint64, error) {
				panic(fmt.Sprintf("demo panic %d", i))
			})
		} else {
			n := 20 + i%60
			c = demo.Fibonacci(n, max(1, n/(opts.yields+1)))
		}
		handles = append(handles, core.SubmitNamed(s, fmt.Sprintf("task-%d", i), c, lane))
	}

	results := core.WaitAllCatching(ctx, handles)

	if bg != nil {
		bg.Stop()
		ticks, err := bgHandle.Wait(ctx)
		if err != nil {
			return fmt.Errorf("background: %w", err)
		}
		fmt.Fprintf(out, "background ticks: %d\n", ticks)
	}

	printResults(out, results)
	printStats(out, s.Stats())

	if opts.hold > 0 && cfg.Metrics.Addr != "" {
		select {
		case <-time.After(opts.hold):
		case <-ctx.Done():
		}
	}
	return ctx.Err()
}

func printResults(out io.Writer, results []core.Result[uint64]) {
	ok, failed := 0, 0
	for i, r := range results {
		if r.OK() {
			ok++
			fmt.Fprintf(out, "task-%d: %d\n", i, r.Value)
			continue
		}
		failed++
		fmt.Fprintf(out, "task-%d: error: %v\n", i, r.Err)
	}
	fmt.Fprintf(out, "tasks: %d ok, %d failed\n", ok, failed)
}

func printStats(out io.Writer, st core.SchedulerStats) {
	for _, lane := range []core.LaneStats{st.High, st.Low} {
		fmt.Fprintf(out, "%s lane: workers=%d completed=%d failed=%d panicked=%d yields=%d fallbacks=%d\n",
			lane.Lane, lane.Workers, lane.Completed, lane.Failed, lane.Panicked, lane.Yields, lane.Fallbacks)
	}
}

func metricsHandler(reg *prom.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return mux
}

// serveMetrics starts the /metrics endpoint and returns a function that shuts it down.
func serveMetrics(addr string, reg *prom.Registry, logger core.Logger) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listen %s: %w", addr, err)
	}
	server := &http.Server{Handler: metricsHandler(reg), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", core.F("error", err))
		}
	}()
	logger.Info("metrics endpoint up", core.F("addr", ln.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
