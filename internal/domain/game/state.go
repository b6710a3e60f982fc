// Package game implements the round engine: the hour-gated score ledger, the
// top-3 tracker, round management and settlement.
//
// The engine is a deterministic state machine. Every transition takes the
// ledger timestamp as an argument and validates all of its preconditions
// before writing anything, so a rejected transition leaves the state exactly
// as it was. Ordering, persistence and value transfers belong to the host.
package game

import (
	"math"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/domain/model"
)

// DefaultRoundDuration is five days in seconds.
const DefaultRoundDuration = 5 * 24 * HourSeconds

// MaxRoundDuration keeps every hour index of a round within uint32.
const MaxRoundDuration = math.MaxUint32 * HourSeconds

// Params are fixed when the engine is created.
type Params struct {
	Owner         common.Address
	RoundDuration uint64
	Decay         Decay
}

// ParamsFromGenesis converts a journal genesis record into engine parameters.
func ParamsFromGenesis(g model.Genesis) Params {
	return Params{
		Owner:         g.Owner,
		RoundDuration: g.RoundDurationSeconds,
		Decay:         Decay{MaxPoints: g.DecayMaxPoints, MinPoints: g.DecayMinPoints},
	}
}

// Round is one competition period.
type Round struct {
	ID           uint64
	StartTime    uint64
	EndTime      uint64
	PrizePool    uint256.Int
	Top          Top3
	Settled      bool
	TotalPlayers uint64

	// Set at settlement. Payouts[i] is the share of Top.Players[i]; shares of
	// empty slots are zero here and accumulated in Unclaimed instead.
	Payouts   [TopK]uint256.Int
	Unclaimed uint256.Int
}

// ScoreEntry is a player's standing within one round.
type ScoreEntry struct {
	TotalScore     uint64
	LastWorkedHour uint32
	Worked         bool
}

// State is the complete engine state.
type State struct {
	params    Params
	rounds    []*Round // rounds[i].ID == i+1
	scores    map[uint64]map[common.Address]*ScoreEntry
	owed      map[common.Address]*uint256.Int
	unclaimed uint256.Int
}

// NewState creates an empty engine.
func NewState(p Params) (*State, error) {
	if p.Owner == (common.Address{}) || p.RoundDuration == 0 || p.RoundDuration > MaxRoundDuration || !p.Decay.valid() {
		return nil, ErrInvalidParams
	}
	return &State{
		params: p,
		scores: make(map[uint64]map[common.Address]*ScoreEntry),
		owed:   make(map[common.Address]*uint256.Int),
	}, nil
}

// Params returns the parameters the engine was created with.
func (s *State) Params() Params { return s.params }

// Owner returns the operator allowed to start rounds.
func (s *State) Owner() common.Address { return s.params.Owner }

// CurrentRoundID returns the id of the latest round, or 0 before the first.
func (s *State) CurrentRoundID() uint64 { return uint64(len(s.rounds)) }

// RoundActive reports whether a round exists and now is before its end.
func (s *State) RoundActive(now uint64) bool {
	r := s.current()
	return r != nil && now < r.EndTime
}

// CurrentRound returns a copy of the latest round.
func (s *State) CurrentRound() (Round, error) {
	r := s.current()
	if r == nil {
		return Round{}, ErrNoRounds
	}
	return *r, nil
}

// Round returns a copy of round id.
func (s *State) Round(id uint64) (Round, error) {
	r, err := s.round(id)
	if err != nil {
		return Round{}, err
	}
	return *r, nil
}

// Top3 returns the ranked players and scores of round id.
func (s *State) Top3(id uint64) (Top3, error) {
	r, err := s.round(id)
	if err != nil {
		return Top3{}, err
	}
	return r.Top, nil
}

// TotalScore returns a player's cumulative score in round id.
func (s *State) TotalScore(id uint64, player common.Address) (uint64, error) {
	e, err := s.entry(id, player)
	if err != nil {
		return 0, err
	}
	return e.TotalScore, nil
}

// LastWorkedHour returns the hour index of the player's last successful work
// in round id. ok is false if the player never worked in that round.
func (s *State) LastWorkedHour(id uint64, player common.Address) (hour uint32, ok bool, err error) {
	e, err := s.entry(id, player)
	if err != nil {
		return 0, false, err
	}
	return e.LastWorkedHour, e.Worked, nil
}

// Owed returns the amount a player can withdraw after a failed payout.
func (s *State) Owed(player common.Address) uint256.Int {
	if v, ok := s.owed[player]; ok {
		return *v
	}
	return uint256.Int{}
}

// UnclaimedBalance returns the shares of empty slots not yet swept.
func (s *State) UnclaimedBalance() uint256.Int { return s.unclaimed }

// startRound opens the next round. Only the owner may call it, and only once
// the previous round has reached its end time.
func (s *State) startRound(caller common.Address, now uint64) (*Round, error) {
	if caller != s.params.Owner {
		return nil, ErrNotOwner
	}
	if s.RoundActive(now) {
		return nil, ErrRoundAlreadyActive
	}
	if now > math.MaxUint64-s.params.RoundDuration {
		return nil, ErrTimeOverflow
	}
	r := &Round{
		ID:        uint64(len(s.rounds)) + 1,
		StartTime: now,
		EndTime:   now + s.params.RoundDuration,
	}
	s.rounds = append(s.rounds, r)
	s.scores[r.ID] = make(map[common.Address]*ScoreEntry)
	return r, nil
}

// fund adds amount to the active round's prize pool.
func (s *State) fund(amount *uint256.Int, now uint64) (*Round, error) {
	r := s.current()
	if r == nil || now >= r.EndTime {
		return nil, ErrRoundNotActive
	}
	if amount == nil || amount.IsZero() {
		return nil, ErrZeroAmount
	}
	var pool uint256.Int
	if _, overflow := pool.AddOverflow(&r.PrizePool, amount); overflow {
		return nil, ErrAmountOverflow
	}
	r.PrizePool = pool
	return r, nil
}

func (s *State) current() *Round {
	if len(s.rounds) == 0 {
		return nil
	}
	return s.rounds[len(s.rounds)-1]
}

func (s *State) round(id uint64) (*Round, error) {
	if id == 0 || id > uint64(len(s.rounds)) {
		return nil, ErrInvalidRoundID
	}
	return s.rounds[id-1], nil
}

func (s *State) entry(id uint64, player common.Address) (ScoreEntry, error) {
	if _, err := s.round(id); err != nil {
		return ScoreEntry{}, err
	}
	if e, ok := s.scores[id][player]; ok {
		return *e, nil
	}
	return ScoreEntry{}, nil
}
