// Package worker executes payout transfers emitted by committed transactions.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

const (
	defaultWorkers         = 4
	defaultTransferTimeout = 10 * time.Second
	defaultRetryDelay      = 200 * time.Millisecond
	poolShutdownTimeout    = 30 * time.Second
)

// Payout results reported to metrics.
const (
	resultOK     = "ok"
	resultFailed = "failed"
	resultOwed   = "owed"
	resultLost   = "lost"
)

// Queue is where workers read transfers from.
type Queue interface {
	Next(ctx context.Context) (model.Transfer, bool)
}

// Bank performs a transfer.
type Bank interface {
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// Recoverer books a transfer that could not be delivered so the recipient
// can withdraw it later.
type Recoverer interface {
	RecoverTransfer(ctx context.Context, t model.Transfer, cause error) error
}

// Worker runs until its queue is drained or ctx is done.
type Worker interface {
	Run(ctx context.Context)
}

// PayoutWorker pulls transfers off the queue and executes them.
type PayoutWorker struct {
	queue     Queue
	bank      Bank
	recoverer Recoverer
	name      string
	retries   int
	delay     time.Duration
	timeout   time.Duration
	logger    logger.Logger
	active    *atomic.Int64
}

// NewPayoutWorker creates a worker configured by opts.
func NewPayoutWorker(q Queue, b Bank, r Recoverer, opts ...Option) *PayoutWorker {
	w := &PayoutWorker{
		queue:     q,
		bank:      b,
		recoverer: r,
		name:      "payout",
		delay:     defaultRetryDelay,
		timeout:   defaultTransferTimeout,
		active:    new(atomic.Int64),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes transfers until the queue is closed and empty.
func (w *PayoutWorker) Run(ctx context.Context) {
	for {
		t, ok := w.queue.Next(ctx)
		if !ok {
			return
		}
		metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
		w.process(ctx, t)
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
	}
}

// process delivers t, retrying failed attempts, and hands it to the
// recoverer if every attempt fails.
func (w *PayoutWorker) process(ctx context.Context, t model.Transfer) { //nolint:gocritic // value semantics
	start := time.Now()
	defer func() {
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
	}()

	var err error
attempts:
	for attempt := 0; ; attempt++ {
		if err = w.send(ctx, t); err == nil {
			metrics.RecordPayout(resultOK)
			w.logger.Debug(ctx, "payout delivered",
				logger.String("tx_id", t.TxID),
				logger.String("to", t.To.Hex()),
				logger.String("amount", t.Amount.Dec()),
			)
			return
		}
		metrics.RecordPayout(resultFailed)
		w.logger.Warn(ctx, "payout attempt failed",
			logger.String("tx_id", t.TxID),
			logger.Int("attempt", attempt+1),
			logger.Error(err),
		)
		if attempt >= w.retries {
			break
		}
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			break attempts
		}
	}

	// Recovery must survive a cancelled run context.
	rctx := context.WithoutCancel(ctx)
	if rerr := w.recoverer.RecoverTransfer(rctx, t, err); rerr != nil {
		metrics.RecordPayout(resultLost)
		metrics.RecordWorkerError()
		metrics.RecordErrorByComponent("worker", "recover_failed")
		w.logger.Error(ctx, "payout could not be recovered",
			logger.String("tx_id", t.TxID),
			logger.String("to", t.To.Hex()),
			logger.String("amount", t.Amount.Dec()),
			logger.Error(fmt.Errorf("transfer: %w, recover: %w", err, rerr)),
		)
		return
	}
	metrics.RecordPayout(resultOwed)
	w.logger.Info(ctx, "payout credited as owed",
		logger.String("tx_id", t.TxID),
		logger.String("to", t.To.Hex()),
		logger.String("amount", t.Amount.Dec()),
	)
}

func (w *PayoutWorker) send(ctx context.Context, t model.Transfer) error { //nolint:gocritic // value semantics
	tctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	start := time.Now()
	err := w.bank.Transfer(tctx, t.To, t.Amount)
	metrics.RecordPayoutLatency(float64(time.Since(start).Milliseconds()))
	return err
}

// Pool runs a fixed number of payout workers.
type Pool struct {
	workers []*PayoutWorker
	queue   interface{ Close() error }
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates count workers sharing q. Options apply to every worker;
// each worker also gets a numbered name.
func NewPool(count int, q interface {
	Queue
	Close() error
}, b Bank, r Recoverer, opts ...Option) *Pool {
	if count < 1 {
		count = defaultWorkers
	}
	p := &Pool{
		workers: make([]*PayoutWorker, count),
		queue:   q,
	}
	active := new(atomic.Int64)
	for i := 0; i < count; i++ {
		wopts := append([]Option{WithName("payout-" + strconv.Itoa(i))}, opts...)
		wopts = append(wopts, withActiveCounter(active))
		p.workers[i] = NewPayoutWorker(q, b, r, wopts...)
	}
	p.logger = p.workers[0].logger
	metrics.UpdateWorkerCount(count)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *PayoutWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
}

// Shutdown closes the queue and waits for the workers to drain it.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing payout queue", logger.Error(err))
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()
	select {
	case <-done:
		metrics.UpdateWorkerCount(0)
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "payout workers did not drain in time")
		return fmt.Errorf("payout pool shutdown: %w", shutdownCtx.Err())
	}
}
