// Package loadtest drives a running pulse server over HTTP: it opens a round,
// has many generated players work concurrently and checks that the reported
// standings agree with the receipts the server returned.
package loadtest

import (
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Defaults used when a Config field is zero.
const (
	DefaultPlayers = 100
	DefaultWorkers = 16
	DefaultTimeout = 10 * time.Second
)

// Sentinel errors.
var (
	ErrUnhealthy = errors.New("service unhealthy")
	ErrMismatch  = errors.New("standings do not match receipts")
	ErrRequest   = errors.New("request failed")
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL string         // base URL of the service
	Owner   common.Address // sender used to start a round when none is active
	Funder  common.Address // sender of the optional fund call
	Fund    string         // decimal amount to fund, empty to skip
	Players int            // number of generated players
	Workers int            // concurrent requests
	Timeout time.Duration  // per-request timeout
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.Players <= 0 {
		out.Players = DefaultPlayers
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Timeout <= 0 {
		out.Timeout = DefaultTimeout
	}
	if out.Funder == (common.Address{}) {
		out.Funder = out.Owner
	}
	return out
}

// Stats holds the outcome of a run.
type Stats struct {
	RoundID       uint64
	Players       int
	WorkSubmitted int64
	WorkOK        int64
	WorkRejected  int64
	WorkFailed    int64
	Verified      int
	Duration      time.Duration
}
