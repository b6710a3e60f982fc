package game

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/domain/model"
)

// Outcome is what a committed transition emits: event logs and the
// transfers the host must carry out afterwards.
type Outcome struct {
	Logs      []model.Log
	Transfers []model.Transfer
}

// Apply executes tx against the state at ledger time now. On error the state
// is unchanged and the error identifies the failed precondition.
func (s *State) Apply(tx model.Tx, now uint64) (Outcome, error) {
	switch tx.Kind {
	case model.TxStartRound:
		r, err := s.startRound(tx.Caller, now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Logs: []model.Log{{Name: model.LogRoundStarted, RoundID: r.ID, Player: tx.Caller}}}, nil

	case model.TxFund:
		r, err := s.fund(tx.Value, now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Logs: []model.Log{{Name: model.LogFunded, RoundID: r.ID, Player: tx.Caller, Amount: amountPtr(*tx.Value)}}}, nil

	case model.TxWork:
		w, err := s.recordWork(tx.Caller, now)
		if err != nil {
			return Outcome{}, err
		}
		return Outcome{Logs: []model.Log{{
			Name:      model.LogWorked,
			RoundID:   w.RoundID,
			Player:    w.Player,
			HourIndex: w.HourIndex,
			Points:    w.Points,
			NewTotal:  w.NewTotal,
		}}}, nil

	case model.TxSettle:
		res, err := s.settle(tx.RoundID, now)
		if err != nil {
			return Outcome{}, err
		}
		return settleOutcome(tx.ID, res), nil

	case model.TxCreditOwed:
		if err := s.creditOwed(tx.Caller, tx.RoundID, tx.To, tx.Value); err != nil {
			return Outcome{}, err
		}
		return Outcome{Logs: []model.Log{{Name: model.LogOwedCredited, RoundID: tx.RoundID, Player: tx.To, Amount: amountPtr(*tx.Value)}}}, nil

	case model.TxWithdraw:
		amount, err := s.withdraw(tx.Caller)
		if err != nil {
			return Outcome{}, err
		}
		return payOutcome(tx.ID, model.LogWithdrawn, tx.Caller, amount), nil

	case model.TxSweepUnclaimed:
		amount, err := s.sweepUnclaimed(tx.Caller)
		if err != nil {
			return Outcome{}, err
		}
		return payOutcome(tx.ID, model.LogSwept, tx.Caller, amount), nil

	default:
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownTx, tx.Kind)
	}
}

func settleOutcome(txID string, res SettleResult) Outcome {
	out := Outcome{Logs: []model.Log{{Name: model.LogSettled, RoundID: res.RoundID, Amount: amountPtr(res.PrizePool)}}}
	for _, p := range res.Payouts {
		out.Logs = append(out.Logs, model.Log{
			Name:    model.LogPayout,
			RoundID: res.RoundID,
			Player:  p.Player,
			Rank:    p.Rank,
			Amount:  amountPtr(p.Amount),
		})
		out.Transfers = append(out.Transfers, model.Transfer{
			TxID:    txID,
			RoundID: res.RoundID,
			To:      p.Player,
			Amount:  amountPtr(p.Amount),
		})
	}
	return out
}

func payOutcome(txID string, name model.LogName, to common.Address, amount uint256.Int) Outcome {
	return Outcome{
		Logs:      []model.Log{{Name: name, Player: to, Amount: amountPtr(amount)}},
		Transfers: []model.Transfer{{TxID: txID, To: to, Amount: amountPtr(amount)}},
	}
}

func amountPtr(v uint256.Int) *uint256.Int {
	return &v
}
