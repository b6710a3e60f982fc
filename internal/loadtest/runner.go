package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
)

// Run executes a complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	c := cfg.withDefaults()
	log := logger.Get().Named("loadtest")
	cl := newClient(c.BaseURL, c.Timeout)
	stats := &Stats{Players: c.Players}
	start := time.Now()

	log.Info(ctx, "starting load run",
		logger.String("base_url", c.BaseURL),
		logger.Int("players", c.Players),
		logger.Int("workers", c.Workers),
	)

	if err := checkHealth(ctx, cl); err != nil {
		return nil, err
	}

	round, err := ensureRound(ctx, cl, c.Owner)
	if err != nil {
		return nil, err
	}
	stats.RoundID = round.ID

	if c.Fund != "" {
		status, apiErr, err := cl.call(ctx, http.MethodPost, "/rounds/current/fund", &c.Funder, map[string]string{"amount": c.Fund}, nil)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("%w: fund: %s", ErrRequest, apiErr.Message)
		}
	}

	players := generatePlayers(c.Players)
	totals := submitWork(ctx, cl, c.Workers, players, stats)

	if err := verify(ctx, cl, round.ID, totals, stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(start)
	log.Info(ctx, "load run finished",
		logger.Uint64("round_id", stats.RoundID),
		logger.Any("work_ok", stats.WorkOK),
		logger.Any("work_rejected", stats.WorkRejected),
		logger.Any("work_failed", stats.WorkFailed),
		logger.Int("verified", stats.Verified),
		logger.Duration("took", stats.Duration),
	)
	return stats, nil
}

func checkHealth(ctx context.Context, cl *client) error {
	status, _, err := cl.call(ctx, http.MethodGet, "/healthz", nil, nil, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, status)
	}
	return nil
}

// ensureRound returns the active round, starting one as owner if needed.
func ensureRound(ctx context.Context, cl *client, owner common.Address) (types.Round, error) {
	var round types.Round
	status, _, err := cl.call(ctx, http.MethodGet, "/rounds/current", nil, nil, &round)
	if err != nil {
		return types.Round{}, err
	}
	if status == http.StatusOK && round.Active {
		return round, nil
	}

	status, apiErr, err := cl.call(ctx, http.MethodPost, "/rounds", &owner, nil, nil)
	if err != nil {
		return types.Round{}, err
	}
	if status != http.StatusOK {
		return types.Round{}, fmt.Errorf("%w: start round: %s", ErrRequest, apiErr.Message)
	}
	if _, _, err := cl.call(ctx, http.MethodGet, "/rounds/current", nil, nil, &round); err != nil {
		return types.Round{}, err
	}
	return round, nil
}

// generatePlayers derives fresh addresses so runs never collide.
func generatePlayers(n int) []common.Address {
	out := make([]common.Address, n)
	for i := range out {
		out[i] = common.BytesToAddress(crypto.Keccak256([]byte(uuid.NewString())))
	}
	return out
}

// submitWork has every player work once and returns the totals reported by
// the receipts of successful calls.
func submitWork(ctx context.Context, cl *client, workers int, players []common.Address, stats *Stats) map[common.Address]uint64 {
	var (
		mu     sync.Mutex
		totals = make(map[common.Address]uint64, len(players))
		wg     sync.WaitGroup
		jobs   = make(chan common.Address, workers*2)
	)

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range jobs {
				atomic.AddInt64(&stats.WorkSubmitted, 1)
				var rcpt model.Receipt
				status, _, err := cl.call(ctx, http.MethodPost, "/work", &p, nil, &rcpt)
				switch {
				case err != nil:
					atomic.AddInt64(&stats.WorkFailed, 1)
				case status != http.StatusOK:
					atomic.AddInt64(&stats.WorkRejected, 1)
				default:
					atomic.AddInt64(&stats.WorkOK, 1)
					mu.Lock()
					totals[p] = rcpt.Logs[0].NewTotal
					mu.Unlock()
				}
			}
		}()
	}

	for _, p := range players {
		select {
		case jobs <- p:
		case <-ctx.Done():
		}
	}
	close(jobs)
	wg.Wait()
	return totals
}
