// Package config defines the process configuration and how it is loaded.
package config

import (
	"fmt"
	"regexp"
	"slices"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/pulse/internal/domain/game"
	"github.com/okian/pulse/internal/domain/model"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log encoding: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Owner is the operator address written to a new journal. When empty the
	// owner recorded in an existing journal is used.
	Owner string `koanf:"owner"`

	// RoundDurationSeconds, DecayMaxPoints and DecayMinPoints seed a new
	// journal and must match an existing one.
	RoundDurationSeconds uint64 `koanf:"round_duration_seconds"`
	DecayMaxPoints       uint64 `koanf:"decay_max_points"`
	DecayMinPoints       uint64 `koanf:"decay_min_points"`

	// DBPath is the SQLite journal file. Empty keeps the journal in memory.
	DBPath string `koanf:"db_path"`

	PayoutWorkers   int `koanf:"payout_workers"`
	PayoutQueueSize int `koanf:"payout_queue_size"`
	PayoutRetries   int `koanf:"payout_retries"`

	// DedupeSize bounds the number of remembered transaction ids.
	DedupeSize int `koanf:"dedupe_size"`

	// RateLimitRPS and RateLimitBurst limit mutating requests per client IP.
	// A zero rate disables limiting.
	RateLimitRPS   float64 `koanf:"rate_limit_rps"`
	RateLimitBurst int     `koanf:"rate_limit_burst"`

	// MetricsNamespace and MetricsSubsystem prefix every exported metric.
	MetricsNamespace string `koanf:"metrics_namespace"`
	MetricsSubsystem string `koanf:"metrics_subsystem"`

	// MetricsLatencyBuckets overrides the latency histogram buckets in
	// milliseconds. Empty keeps the built-in buckets.
	MetricsLatencyBuckets []float64 `koanf:"metrics_latency_buckets"`
}

var metricName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		RoundDurationSeconds: game.DefaultRoundDuration,
		DecayMaxPoints:       game.DefaultMaxPoints,
		DecayMinPoints:       game.DefaultMinPoints,
		DBPath:               "pulse.db",
		PayoutWorkers:        4,
		PayoutQueueSize:      1024,
		PayoutRetries:        3,
		DedupeSize:           100_000,
		RateLimitRPS:         10,
		RateLimitBurst:       20,
		MetricsNamespace:     "pulse",
		MetricsSubsystem:     "engine",
	}
}

// Genesis returns the engine parameters a new journal is seeded with.
func (c *Config) Genesis() model.Genesis {
	var owner common.Address
	if c.Owner != "" {
		owner = common.HexToAddress(c.Owner)
	}
	return model.Genesis{
		Owner:                owner,
		RoundDurationSeconds: c.RoundDurationSeconds,
		DecayMaxPoints:       c.DecayMaxPoints,
		DecayMinPoints:       c.DecayMinPoints,
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !slices.Contains([]string{"debug", "info", "warn", "error"}, c.LogLevel):
		return fmt.Errorf("%w: unknown log_level %q", ErrInvalidConfig, c.LogLevel)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: unknown log_format %q", ErrInvalidConfig, c.LogFormat)
	case c.Owner != "" && !common.IsHexAddress(c.Owner):
		return fmt.Errorf("%w: owner %q is not an address", ErrInvalidConfig, c.Owner)
	case c.RoundDurationSeconds == 0:
		return fmt.Errorf("%w: round_duration_seconds must be positive", ErrInvalidConfig)
	case c.RoundDurationSeconds > game.MaxRoundDuration:
		return fmt.Errorf("%w: round_duration_seconds must not exceed %d", ErrInvalidConfig, uint64(game.MaxRoundDuration))
	case c.DecayMaxPoints == 0 || c.DecayMinPoints > c.DecayMaxPoints:
		return fmt.Errorf("%w: decay points must satisfy 0 <= min <= max, max > 0", ErrInvalidConfig)
	case c.PayoutWorkers <= 0:
		return fmt.Errorf("%w: payout_workers must be positive", ErrInvalidConfig)
	case c.PayoutQueueSize <= 0:
		return fmt.Errorf("%w: payout_queue_size must be positive", ErrInvalidConfig)
	case c.PayoutRetries < 0:
		return fmt.Errorf("%w: payout_retries must not be negative", ErrInvalidConfig)
	case c.DedupeSize < 0:
		return fmt.Errorf("%w: dedupe_size must not be negative", ErrInvalidConfig)
	case c.RateLimitRPS < 0:
		return fmt.Errorf("%w: rate_limit_rps must not be negative", ErrInvalidConfig)
	case c.RateLimitRPS > 0 && c.RateLimitBurst <= 0:
		return fmt.Errorf("%w: rate_limit_burst must be positive when limiting", ErrInvalidConfig)
	case !metricName.MatchString(c.MetricsNamespace):
		return fmt.Errorf("%w: metrics_namespace %q is not a metric name", ErrInvalidConfig, c.MetricsNamespace)
	case !metricName.MatchString(c.MetricsSubsystem):
		return fmt.Errorf("%w: metrics_subsystem %q is not a metric name", ErrInvalidConfig, c.MetricsSubsystem)
	case !increasing(c.MetricsLatencyBuckets):
		return fmt.Errorf("%w: metrics_latency_buckets must be strictly increasing", ErrInvalidConfig)
	}
	return nil
}

func increasing(v []float64) bool {
	for i := 1; i < len(v); i++ {
		if v[i] <= v[i-1] {
			return false
		}
	}
	return true
}
