package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/adapters/repository"
	"github.com/okian/pulse/internal/domain/game"
	"github.com/okian/pulse/internal/domain/model"
)

// Replayed is the engine state rebuilt from a journal.
type Replayed struct {
	State     *game.State
	Genesis   model.Genesis
	Height    uint64
	Timestamp uint64
	Txs       int
	Rejected  int

	// Held is the value the engine should hold: contributions minus
	// transfers handed out, plus transfers that came back as owed credits.
	Held uint256.Int
}

// execute applies tx and builds its receipt. On rejection the outcome is
// empty and err carries the failed precondition.
func execute(st *game.State, tx model.Tx, height, now uint64) (model.Receipt, game.Outcome, error) { //nolint:gocritic // value semantics
	rcpt := model.Receipt{TxID: tx.ID, Kind: tx.Kind, Height: height, Timestamp: now}
	out, err := st.Apply(tx, now)
	if err != nil {
		rcpt.Status = model.StatusRejected
		rcpt.Error = err.Error()
		return rcpt, game.Outcome{}, err
	}
	rcpt.Status = model.StatusOK
	rcpt.Logs = out.Logs
	rcpt.Transfers = out.Transfers
	return rcpt, out, nil
}

// track updates the held balance for a committed transaction.
func track(held *uint256.Int, tx *model.Tx, out game.Outcome) {
	switch tx.Kind {
	case model.TxFund, model.TxCreditOwed:
		held.Add(held, tx.Value)
	}
	for _, t := range out.Transfers {
		held.Sub(held, t.Amount)
	}
}

// Replay re-executes every journal record against a fresh engine and checks
// each produced receipt against the stored one. visit, if set, sees every
// record after it has been verified.
func Replay(ctx context.Context, j repository.Journal, visit func(repository.Record)) (*Replayed, error) {
	var res Replayed
	err := j.Iterate(ctx, func(rec repository.Record) error {
		if rec.Height == 0 {
			st, err := game.NewState(game.ParamsFromGenesis(*rec.Genesis))
			if err != nil {
				return fmt.Errorf("genesis: %w", err)
			}
			res.State = st
			res.Genesis = *rec.Genesis
			res.Timestamp = rec.Timestamp
			if visit != nil {
				visit(rec)
			}
			return nil
		}

		if rec.Timestamp < res.Timestamp {
			return fmt.Errorf("%w: record %d goes back in time", ErrReplayDivergence, rec.Height)
		}
		rcpt, out, err := execute(res.State, *rec.Tx, rec.Height, rec.Timestamp)
		if same, cerr := sameReceipt(&rcpt, rec.Receipt); cerr != nil {
			return cerr
		} else if !same {
			return fmt.Errorf("%w: record %d (%s)", ErrReplayDivergence, rec.Height, rec.Tx.Kind)
		}
		if err != nil {
			res.Rejected++
		} else {
			track(&res.Held, rec.Tx, out)
		}
		res.Txs++
		res.Height = rec.Height
		res.Timestamp = rec.Timestamp
		if visit != nil {
			visit(rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.State == nil {
		return nil, repository.ErrEmpty
	}
	return &res, nil
}

func sameReceipt(a, b *model.Receipt) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encode receipt: %w", err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode receipt: %w", err)
	}
	return bytes.Equal(ab, bb), nil
}
