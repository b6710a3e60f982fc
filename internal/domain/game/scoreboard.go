package game

import "github.com/ethereum/go-ethereum/common"

// WorkResult describes a successful work call.
type WorkResult struct {
	RoundID   uint64
	Player    common.Address
	HourIndex uint32
	Points    uint64
	NewTotal  uint64
}

// recordWork scores one work call for player at ledger time now. A player
// scores at most once per hour index of the round, and earns more the earlier
// in that hour the call lands.
func (s *State) recordWork(player common.Address, now uint64) (WorkResult, error) {
	if player == (common.Address{}) {
		return WorkResult{}, ErrInvalidCaller
	}
	r := s.current()
	if r == nil || now < r.StartTime || now >= r.EndTime {
		return WorkResult{}, ErrNoActiveRound
	}

	elapsed := now - r.StartTime
	hour := uint32(elapsed / HourSeconds)

	book := s.scores[r.ID]
	e, seen := book[player]
	if seen && e.Worked && e.LastWorkedHour == hour {
		return WorkResult{}, ErrAlreadyScoredThisHour
	}

	points := s.params.Decay.Points(elapsed % HourSeconds)
	if !seen {
		e = &ScoreEntry{}
		book[player] = e
		r.TotalPlayers++
	}
	e.TotalScore += points
	e.LastWorkedHour = hour
	e.Worked = true

	r.Top.Update(player, e.TotalScore)

	return WorkResult{
		RoundID:   r.ID,
		Player:    player,
		HourIndex: hour,
		Points:    points,
		NewTotal:  e.TotalScore,
	}, nil
}
