// Package types contains the read models served by the API and the CLI.
package types

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/domain/game"
)

// Entry represents one ranked slot of a round's top 3.
type Entry struct {
	Rank   int    `json:"rank"`
	Player string `json:"player"`
	Score  uint64 `json:"score"`
}

// Round is the public view of a round. Amounts are decimal strings in the
// smallest unit of the value token.
type Round struct {
	ID           uint64   `json:"id"`
	StartTime    uint64   `json:"start_time"`
	EndTime      uint64   `json:"end_time"`
	Active       bool     `json:"active"`
	Settled      bool     `json:"settled"`
	PrizePool    string   `json:"prize_pool"`
	TotalPlayers uint64   `json:"total_players"`
	Top3         []Entry  `json:"top3"`
	Payouts      []string `json:"payouts,omitempty"`
	Unclaimed    string   `json:"unclaimed,omitempty"`
}

// Player is a player's standing within one round.
type Player struct {
	RoundID        uint64  `json:"round_id"`
	Player         string  `json:"player"`
	TotalScore     uint64  `json:"total_score"`
	LastWorkedHour *uint32 `json:"last_worked_hour,omitempty"`
	Owed           string  `json:"owed"`
}

// Owner describes the operator and the balances held for it.
type Owner struct {
	Owner          string `json:"owner"`
	CurrentRoundID uint64 `json:"current_round_id"`
	Unclaimed      string `json:"unclaimed"`
}

// Entries lists the occupied slots of t in rank order.
func Entries(t game.Top3) []Entry {
	out := make([]Entry, 0, game.TopK)
	for i, p := range t.Players {
		if p == (common.Address{}) {
			break
		}
		out = append(out, Entry{Rank: i + 1, Player: p.Hex(), Score: t.Scores[i]})
	}
	return out
}

// NewRound builds the view of r as seen at ledger time now.
func NewRound(r game.Round, now uint64) Round {
	v := Round{
		ID:           r.ID,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Active:       now >= r.StartTime && now < r.EndTime,
		Settled:      r.Settled,
		PrizePool:    Amount(r.PrizePool),
		TotalPlayers: r.TotalPlayers,
		Top3:         Entries(r.Top),
	}
	if r.Settled {
		v.Payouts = make([]string, 0, len(v.Top3))
		for i := range v.Top3 {
			v.Payouts = append(v.Payouts, Amount(r.Payouts[i]))
		}
		v.Unclaimed = Amount(r.Unclaimed)
	}
	return v
}

// Amount renders a token amount as a decimal string.
func Amount(v uint256.Int) string {
	return v.Dec()
}
