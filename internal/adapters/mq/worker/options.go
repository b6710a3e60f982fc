package worker

import (
	"sync/atomic"
	"time"

	"github.com/okian/pulse/pkg/logger"
)

// Option applies a configuration option to a PayoutWorker.
type Option func(*PayoutWorker)

// WithName sets the worker name used in logs.
func WithName(name string) Option {
	return func(w *PayoutWorker) {
		if name != "" {
			w.name = name
		}
	}
}

// WithLogger sets the worker logger.
func WithLogger(l logger.Logger) Option {
	return func(w *PayoutWorker) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithRetries sets how many times a failed transfer is retried before it is
// handed to the recoverer.
func WithRetries(n int) Option {
	return func(w *PayoutWorker) {
		if n >= 0 {
			w.retries = n
		}
	}
}

// WithRetryDelay sets the pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(w *PayoutWorker) {
		if d >= 0 {
			w.delay = d
		}
	}
}

// WithTransferTimeout bounds a single bank call.
func WithTransferTimeout(d time.Duration) Option {
	return func(w *PayoutWorker) {
		if d > 0 {
			w.timeout = d
		}
	}
}

func withActiveCounter(c *atomic.Int64) Option {
	return func(w *PayoutWorker) {
		w.active = c
	}
}
