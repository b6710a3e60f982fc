// Package service hosts the round engine: it orders transactions, stamps
// ledger time, journals every outcome and executes payouts after commit.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/adapters/bank"
	payoutqueue "github.com/okian/pulse/internal/adapters/mq/queue"
	"github.com/okian/pulse/internal/adapters/mq/worker"
	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/dedupe"
	"github.com/okian/pulse/internal/domain/game"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const (
	defaultPayoutWorkers   = 4
	defaultPayoutQueueSize = 4096
	defaultPayoutRetries   = 2
)

// Bank is the value transfer backend.
type Bank = worker.Bank

// depositor is implemented by banks that track the engine's own balance.
type depositor interface {
	Deposit(amount *uint256.Int)
}

// Service is the single writer of the engine state.
type Service struct {
	mu sync.RWMutex

	state     *game.State
	genesis   model.Genesis
	height    uint64
	lastTime  uint64
	held      uint256.Int
	halted    error
	started   bool
	stopping  bool
	journal   repository.Journal
	bank      Bank
	deduper   dedupe.Deduper
	queue     *payoutqueue.InMemoryQueue
	pool      *worker.Pool
	cancelRun context.CancelFunc
	clock     func() time.Time

	payoutWorkers   int
	payoutQueueSize int
	payoutRetries   int
	dedupeSize      int

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithGenesis sets the parameters used when the journal is empty.
func WithGenesis(g model.Genesis) Option {
	return func(s *Service) {
		s.genesis = g
	}
}

// WithJournal sets the journal. Defaults to an in-memory journal.
func WithJournal(j repository.Journal) Option {
	return func(s *Service) {
		if j != nil {
			s.journal = j
		}
	}
}

// WithBank sets the transfer backend. Defaults to an in-memory bank.
func WithBank(b Bank) Option {
	return func(s *Service) {
		if b != nil {
			s.bank = b
		}
	}
}

// WithClock sets the wall clock ledger time is derived from.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// WithPayoutWorkers sets the number of payout workers.
func WithPayoutWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.payoutWorkers = n
		}
	}
}

// WithPayoutQueueSize sets the payout queue capacity.
func WithPayoutQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.payoutQueueSize = n
		}
	}
}

// WithPayoutRetries sets how often a failed transfer is retried before it
// is credited as owed.
func WithPayoutRetries(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.payoutRetries = n
		}
	}
}

// WithDedupeSize sets how many transaction ids are remembered.
func WithDedupeSize(n int) Option {
	return func(s *Service) {
		s.dedupeSize = n
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. Call Start before submitting transactions.
func New(opts ...Option) *Service {
	s := &Service{
		genesis: model.Genesis{
			RoundDurationSeconds: game.DefaultRoundDuration,
			DecayMaxPoints:       game.DefaultMaxPoints,
			DecayMinPoints:       game.DefaultMinPoints,
		},
		clock:           time.Now,
		payoutWorkers:   defaultPayoutWorkers,
		payoutQueueSize: defaultPayoutQueueSize,
		payoutRetries:   defaultPayoutRetries,
		dedupeSize:      dedupe.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start loads the journal, replaying it if it has records and writing the
// genesis record if it does not, then starts the payout workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("engine")
	}
	if s.journal == nil {
		s.journal = repository.NewMemoryJournal()
	}
	if s.bank == nil {
		s.bank = bank.NewInMemoryBank()
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.logger.Info(ctx, "starting round engine...")

	if err := s.load(ctx); err != nil {
		return err
	}

	s.queue = payoutqueue.NewInMemoryQueue(payoutqueue.WithCapacity(s.payoutQueueSize))
	s.pool = worker.NewPool(s.payoutWorkers, s.queue, s.bank, s,
		worker.WithRetries(s.payoutRetries),
		worker.WithLogger(s.logger.Named("payout")),
	)
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancelRun = cancel
	s.pool.Start(runCtx)

	s.started = true
	s.stopping = false
	s.publish()
	s.logger.Info(ctx, "round engine started",
		logger.String("owner", s.genesis.Owner.Hex()),
		logger.Uint64("height", s.height),
		logger.Uint64("current_round", s.state.CurrentRoundID()),
		logger.Int("payout_workers", s.payoutWorkers),
	)
	return nil
}

// load rebuilds the state from the journal or seeds a new journal.
func (s *Service) load(ctx context.Context) error {
	_, err := s.journal.Head(ctx)
	switch {
	case errors.Is(err, repository.ErrEmpty):
		st, err := game.NewState(game.ParamsFromGenesis(s.genesis))
		if err != nil {
			return fmt.Errorf("service: %w", err)
		}
		now := uint64(s.clock().Unix())
		g := s.genesis
		if err := s.journal.Append(ctx, &repository.Record{Height: 0, Timestamp: now, Genesis: &g}); err != nil {
			return fmt.Errorf("service: write genesis: %w", err)
		}
		s.state, s.height, s.lastTime = st, 0, now
		s.logger.Info(ctx, "journal initialized", logger.Uint64("timestamp", now))
		return nil

	case err != nil:
		return fmt.Errorf("service: read journal head: %w", err)
	}

	start := time.Now()
	res, err := Replay(ctx, s.journal, func(rec repository.Record) {
		if rec.Tx != nil && rec.Tx.ID != "" {
			s.deduper.SeenAndRecord(ctx, rec.Tx.ID)
		}
	})
	if err != nil {
		return fmt.Errorf("service: replay: %w", err)
	}
	if s.genesis.Owner != (common.Address{}) && s.genesis != res.Genesis {
		return fmt.Errorf("%w: journal owner %s", ErrGenesisMismatch, res.Genesis.Owner.Hex())
	}
	s.state, s.genesis, s.height, s.lastTime = res.State, res.Genesis, res.Height, res.Timestamp
	s.held = res.Held
	if d, ok := s.bank.(depositor); ok {
		d.Deposit(&res.Held)
	}
	s.logger.Info(ctx, "journal replayed",
		logger.Uint64("height", res.Height),
		logger.Int("transactions", res.Txs),
		logger.Int("rejected", res.Rejected),
		logger.Duration("took", time.Since(start)),
	)
	return nil
}

// Stop refuses new transactions, lets the payout workers drain and closes
// the journal.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started || s.stopping {
		s.mu.Unlock()
		return nil
	}
	s.stopping = true
	s.mu.Unlock()

	s.logger.Info(ctx, "stopping round engine...")

	// Workers may still credit failed payouts while draining.
	err := s.pool.Shutdown(ctx)
	s.cancelRun()

	s.mu.Lock()
	defer s.mu.Unlock()
	if cerr := s.journal.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	s.started = false
	s.logger.Info(ctx, "round engine stopped", logger.Uint64("height", s.height))
	return err
}

// publish refreshes gauges from the current state. Callers hold s.mu.
func (s *Service) publish() {
	var players uint64
	if r, err := s.state.CurrentRound(); err == nil {
		players = r.TotalPlayers
	}
	metrics.UpdateCurrentRound(s.state.CurrentRoundID(), players)
	metrics.UpdateJournalHeight(s.height)
}
