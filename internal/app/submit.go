package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
	"github.com/okian/pulse/pkg/metrics"
)

// Submit executes tx and returns its receipt. A rejected transaction is
// journaled and returned with a rejected receipt together with the error
// naming the failed precondition. Duplicate ids are refused without being
// journaled. Ids in the owed credit form are reserved for the service.
func (s *Service) Submit(ctx context.Context, tx model.Tx) (model.Receipt, error) { //nolint:gocritic // value semantics
	if tx.Kind == model.TxCreditOwed {
		return model.Receipt{}, ErrReservedTx
	}
	if strings.Contains(tx.ID, owedIDMarker) {
		return model.Receipt{}, fmt.Errorf("%w: %s", ErrReservedTxID, tx.ID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitLocked(ctx, tx, false)
}

// RecoverTransfer books a payout that could not be delivered as an owed
// credit the recipient can withdraw. The transaction id is derived from the
// transfer so a transfer is credited at most once.
func (s *Service) RecoverTransfer(ctx context.Context, t model.Transfer, cause error) error { //nolint:gocritic // value semantics
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recoverLocked(ctx, t, cause)
}

// owedIDMarker separates the paying transaction id from the beneficiary in
// the id of an owed credit.
const owedIDMarker = "/owed/"

func owedTxID(t *model.Transfer) string {
	return t.TxID + owedIDMarker + t.To.Hex()
}

func (s *Service) recoverLocked(ctx context.Context, t model.Transfer, cause error) error { //nolint:gocritic // value semantics
	tx := model.Tx{
		ID:      owedTxID(&t),
		Kind:    model.TxCreditOwed,
		RoundID: t.RoundID,
		To:      t.To,
		Value:   t.Amount,
	}
	s.logger.Warn(ctx, "crediting undelivered payout",
		logger.String("tx_id", t.TxID),
		logger.String("to", t.To.Hex()),
		logger.String("amount", t.Amount.Dec()),
		logger.Error(cause),
	)
	_, err := s.submitLocked(ctx, tx, true)
	return err
}

// submitLocked runs one transaction to completion. Callers hold s.mu.
// system marks transactions issued by the service itself, which are still
// accepted while the service drains.
func (s *Service) submitLocked(ctx context.Context, tx model.Tx, system bool) (model.Receipt, error) { //nolint:gocritic // value semantics
	switch {
	case s.halted != nil:
		return model.Receipt{}, fmt.Errorf("%w: %w", ErrHalted, s.halted)
	case !s.started:
		return model.Receipt{}, ErrNotStarted
	case s.stopping && !system:
		return model.Receipt{}, ErrStopping
	}

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if s.deduper.SeenAndRecord(ctx, tx.ID) {
		metrics.RecordTxDuplicate()
		return model.Receipt{}, fmt.Errorf("%w: %s", ErrDuplicateTx, tx.ID)
	}

	start := time.Now()
	now := uint64(s.clock().Unix())
	if now < s.lastTime {
		now = s.lastTime
	}
	height := s.height + 1

	rcpt, out, applyErr := execute(s.state, tx, height, now)

	rec := &repository.Record{Height: height, Timestamp: now, Tx: &tx, Receipt: &rcpt}
	appendStart := time.Now()
	if err := s.journal.Append(ctx, rec); err != nil {
		// The state already moved; only a replay can bring it back in line
		// with the journal.
		s.halted = err
		s.deduper.Unrecord(ctx, tx.ID)
		metrics.RecordJournalError()
		metrics.RecordErrorByComponent("journal", "append")
		s.logger.Error(ctx, "journal append failed, halting",
			logger.Uint64("height", height),
			logger.String("tx_id", tx.ID),
			logger.Error(err),
		)
		return model.Receipt{}, fmt.Errorf("%w: %w", ErrHalted, err)
	}
	metrics.RecordJournalAppendLatency(float64(time.Since(appendStart).Microseconds()) / 1000)

	s.height, s.lastTime = height, now
	s.observe(&tx, &rcpt, applyErr)
	metrics.RecordTxLatency(float64(time.Since(start).Microseconds()) / 1000)

	if applyErr != nil {
		s.logger.Debug(ctx, "transaction rejected",
			logger.String("tx_id", tx.ID),
			logger.String("kind", string(tx.Kind)),
			logger.String("caller", tx.Caller.Hex()),
			logger.Error(applyErr),
		)
		return rcpt, applyErr
	}

	track(&s.held, &tx, out)
	if tx.Kind == model.TxFund {
		if d, ok := s.bank.(depositor); ok {
			d.Deposit(tx.Value)
		}
	}
	s.dispatch(ctx, out.Transfers)
	return rcpt, nil
}

// dispatch hands committed transfers to the payout workers. A transfer the
// queue cannot take is credited as owed straight away.
func (s *Service) dispatch(ctx context.Context, transfers []model.Transfer) {
	for _, t := range transfers {
		if s.queue.Enqueue(ctx, t) {
			continue
		}
		if err := s.recoverLocked(ctx, t, errors.New("payout queue unavailable")); err != nil {
			s.logger.Error(ctx, "payout dropped",
				logger.String("tx_id", t.TxID),
				logger.String("to", t.To.Hex()),
				logger.Error(err),
			)
		}
	}
}

func (s *Service) observe(tx *model.Tx, rcpt *model.Receipt, applyErr error) {
	metrics.RecordTx(string(tx.Kind), string(rcpt.Status))
	if applyErr == nil {
		switch tx.Kind {
		case model.TxWork:
			metrics.RecordPointsAwarded(rcpt.Logs[0].Points)
		case model.TxStartRound:
			metrics.RecordRoundStarted()
		case model.TxSettle:
			metrics.RecordRoundSettled()
		}
	}
	s.publish()
}

// StartRound opens a new round. Only the owner may call it.
func (s *Service) StartRound(ctx context.Context, caller common.Address) (model.Receipt, error) {
	return s.Submit(ctx, model.Tx{Kind: model.TxStartRound, Caller: caller})
}

// Fund adds amount to the active round's prize pool.
func (s *Service) Fund(ctx context.Context, caller common.Address, amount *uint256.Int) (model.Receipt, error) {
	return s.Submit(ctx, model.Tx{Kind: model.TxFund, Caller: caller, Value: amount})
}

// Work records the caller's work for the current hour of the active round.
func (s *Service) Work(ctx context.Context, caller common.Address) (model.Receipt, error) {
	return s.Submit(ctx, model.Tx{Kind: model.TxWork, Caller: caller})
}

// Settle pays out round id once it has ended. Anyone may call it.
func (s *Service) Settle(ctx context.Context, caller common.Address, roundID uint64) (model.Receipt, error) {
	return s.Submit(ctx, model.Tx{Kind: model.TxSettle, Caller: caller, RoundID: roundID})
}

// Withdraw pays out the caller's owed balance.
func (s *Service) Withdraw(ctx context.Context, caller common.Address) (model.Receipt, error) {
	return s.Submit(ctx, model.Tx{Kind: model.TxWithdraw, Caller: caller})
}

// SweepUnclaimed sends the unpaid shares of empty slots to the owner.
func (s *Service) SweepUnclaimed(ctx context.Context, caller common.Address) (model.Receipt, error) {
	return s.Submit(ctx, model.Tx{Kind: model.TxSweepUnclaimed, Caller: caller})
}
