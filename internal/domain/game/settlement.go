package game

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Prize split in percent for ranks 1 and 2. Rank 3 takes the remainder so
// the three shares always add up to the pool.
const (
	firstSharePct  = 50
	secondSharePct = 30
)

// Payout is one paid slot of a settled round.
type Payout struct {
	Rank   int
	Player common.Address
	Amount uint256.Int
}

// SettleResult describes a successful settlement.
type SettleResult struct {
	RoundID   uint64
	PrizePool uint256.Int
	Payouts   []Payout
	Unclaimed uint256.Int
}

// Split divides pool 50/30/20 with the integer remainder in the third share.
func Split(pool *uint256.Int) [TopK]uint256.Int {
	var shares [TopK]uint256.Int
	// pool*pct/100 never exceeds pool, so the overflow flag is always false.
	shares[0].MulDivOverflow(pool, uint256.NewInt(firstSharePct), uint256.NewInt(100))
	shares[1].MulDivOverflow(pool, uint256.NewInt(secondSharePct), uint256.NewInt(100))
	shares[2].Sub(pool, &shares[0])
	shares[2].Sub(&shares[2], &shares[1])
	return shares
}

// settle finalizes round id once its end time has passed. Anyone may call it.
//
// The round is marked settled and every share is recorded before the result
// leaves the engine; the host performs the transfers afterwards, so a
// transfer that calls back into settle only ever sees a settled round.
func (s *State) settle(id uint64, now uint64) (SettleResult, error) {
	r, err := s.round(id)
	if err != nil {
		return SettleResult{}, err
	}
	if now < r.EndTime {
		return SettleResult{}, ErrRoundNotEnded
	}
	if r.Settled {
		return SettleResult{}, ErrAlreadySettled
	}

	shares := Split(&r.PrizePool)

	r.Settled = true
	res := SettleResult{RoundID: r.ID, PrizePool: r.PrizePool}
	for i := 0; i < TopK; i++ {
		if r.Top.Players[i] == (common.Address{}) {
			r.Unclaimed.Add(&r.Unclaimed, &shares[i])
			continue
		}
		r.Payouts[i] = shares[i]
		if shares[i].IsZero() {
			continue
		}
		res.Payouts = append(res.Payouts, Payout{Rank: i + 1, Player: r.Top.Players[i], Amount: shares[i]})
	}
	s.unclaimed.Add(&s.unclaimed, &r.Unclaimed)
	res.Unclaimed = r.Unclaimed
	return res, nil
}

// creditOwed books a transfer that failed so the beneficiary can pull it
// later with withdraw. Only the system caller (the zero address) issues it.
// A non-zero round id ties the credit to that round's payout, which must
// have gone to the beneficiary.
func (s *State) creditOwed(caller common.Address, id uint64, to common.Address, amount *uint256.Int) error {
	if caller != (common.Address{}) || to == (common.Address{}) {
		return ErrInvalidCaller
	}
	if amount == nil || amount.IsZero() {
		return ErrZeroAmount
	}
	if id != 0 {
		r, err := s.round(id)
		if err != nil {
			return err
		}
		if !r.Settled {
			return ErrRoundNotSettled
		}
		if !paidIn(r, to, amount) {
			return ErrNotWinner
		}
	}
	cur, ok := s.owed[to]
	if !ok {
		cur = new(uint256.Int)
	}
	var sum uint256.Int
	if _, overflow := sum.AddOverflow(cur, amount); overflow {
		return ErrAmountOverflow
	}
	cur.Set(&sum)
	s.owed[to] = cur
	return nil
}

func paidIn(r *Round, to common.Address, amount *uint256.Int) bool {
	for i, p := range r.Top.Players {
		if p == to && !amount.Gt(&r.Payouts[i]) {
			return true
		}
	}
	return false
}

// withdraw clears the caller's owed balance and returns the amount to send.
func (s *State) withdraw(caller common.Address) (uint256.Int, error) {
	if caller == (common.Address{}) {
		return uint256.Int{}, ErrInvalidCaller
	}
	v, ok := s.owed[caller]
	if !ok || v.IsZero() {
		return uint256.Int{}, ErrNothingOwed
	}
	amount := *v
	delete(s.owed, caller)
	return amount, nil
}

// sweepUnclaimed hands the unpaid shares of empty slots to the owner.
func (s *State) sweepUnclaimed(caller common.Address) (uint256.Int, error) {
	if caller != s.params.Owner {
		return uint256.Int{}, ErrNotOwner
	}
	if s.unclaimed.IsZero() {
		return uint256.Int{}, ErrNothingUnclaimed
	}
	amount := s.unclaimed
	s.unclaimed.Clear()
	return amount, nil
}
