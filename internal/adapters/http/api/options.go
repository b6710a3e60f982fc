package api

import (
	"golang.org/x/time/rate"

	"github.com/okian/pulse/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit limits mutating requests to rps per client IP with the given
// burst. A non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps > 0 && burst > 0 {
			s.rateLimit, s.burst = rate.Limit(rps), burst
		}
	}
}
