// Package config loads laneexec CLI settings from defaults, an optional
// YAML file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Swind/go-lane-executor/core"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. LANEEXEC_SCHEDULER_HIGH_WORKERS.
const EnvPrefix = "LANEEXEC"

// Config is the top-level CLI configuration.
type Config struct {
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
}

// SchedulerConfig controls lane sizing and worker behavior.
type SchedulerConfig struct {
	Name string `mapstructure:"name"`
	// HighWorkers falls back to the HIGH_NUM environment variable.
	HighWorkers int `mapstructure:"high_workers"`
	// LowWorkers falls back to the LOW_NUM environment variable.
	LowWorkers      int  `mapstructure:"low_workers"`
	IdleIntervalMs  int  `mapstructure:"idle_interval_ms"`
	LockOSThread    bool `mapstructure:"lock_os_thread"`
	HistoryCapacity int  `mapstructure:"history_capacity"`
}

// LoggingConfig controls the zap logger.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Addr is the listen address for /metrics; empty disables it.
	Addr           string `mapstructure:"addr"`
	PollIntervalMs int    `mapstructure:"poll_interval_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	high, low := core.DefaultLaneSizing()
	return &Config{
		Scheduler: SchedulerConfig{
			Name:            "laneexec",
			HighWorkers:     high,
			LowWorkers:      low,
			IdleIntervalMs:  int(core.DefaultIdleInterval / time.Millisecond),
			HistoryCapacity: 100,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Metrics: MetricsConfig{
			PollIntervalMs: 1000,
		},
	}
}

// SetDefaults registers the built-in values and environment bindings on v.
func SetDefaults(v *viper.Viper) {
	defaults := Default()

	v.SetDefault("scheduler.name", defaults.Scheduler.Name)
	v.SetDefault("scheduler.high_workers", defaults.Scheduler.HighWorkers)
	v.SetDefault("scheduler.low_workers", defaults.Scheduler.LowWorkers)
	v.SetDefault("scheduler.idle_interval_ms", defaults.Scheduler.IdleIntervalMs)
	v.SetDefault("scheduler.lock_os_thread", defaults.Scheduler.LockOSThread)
	v.SetDefault("scheduler.history_capacity", defaults.Scheduler.HistoryCapacity)

	v.SetDefault("logging.level", defaults.Logging.Level)

	v.SetDefault("metrics.addr", defaults.Metrics.Addr)
	v.SetDefault("metrics.poll_interval_ms", defaults.Metrics.PollIntervalMs)

	v.SetEnvPrefix(EnvPrefix)
	// e.g., LANEEXEC_LOGGING_LEVEL for logging.level
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// The prefixed name wins over the legacy one.
	_ = v.BindEnv("scheduler.high_workers", EnvPrefix+"_SCHEDULER_HIGH_WORKERS", "HIGH_NUM")
	_ = v.BindEnv("scheduler.low_workers", EnvPrefix+"_SCHEDULER_LOW_WORKERS", "LOW_NUM")
}

// Load reads configuration from v. When file is non-empty it is read first;
// a missing or malformed file is an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	SetDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}
	return &cfg, nil
}

// IdleInterval returns the idle re-poll interval as a duration.
func (c *SchedulerConfig) IdleInterval() time.Duration {
	return time.Duration(c.IdleIntervalMs) * time.Millisecond
}

// PollInterval returns the stats poll interval as a duration.
func (c *MetricsConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// CoreConfig builds the core scheduler configuration. logger and metrics may be nil.
func (c *Config) CoreConfig(logger core.Logger, metrics core.Metrics) *core.SchedulerConfig {
	return &core.SchedulerConfig{
		Name:            c.Scheduler.Name,
		HighWorkers:     c.Scheduler.HighWorkers,
		LowWorkers:      c.Scheduler.LowWorkers,
		IdleInterval:    c.Scheduler.IdleInterval(),
		LockOSThread:    c.Scheduler.LockOSThread,
		HistoryCapacity: c.Scheduler.HistoryCapacity,
		Logger:          logger,
		Metrics:         metrics,
	}
}

// IsValidationError reports whether err came from Validate.
func IsValidationError(err error) bool {
	var verrs ValidationErrors
	return errors.As(err, &verrs)
}
