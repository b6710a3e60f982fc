package game

import "github.com/ethereum/go-ethereum/common"

// TopK is the number of ranked slots kept per round.
const TopK = 3

// Top3 tracks the three highest-scoring distinct players of a round.
//
// Slots are filled front to back and kept in descending score order. Empty
// slots hold the zero address and a zero score. Ties keep whoever reached the
// score first in the higher slot: comparisons are strict, so an update only
// moves a player past slots with a lower score, and an outsider must beat the
// current minimum to enter.
type Top3 struct {
	Players [TopK]common.Address
	Scores  [TopK]uint64
}

// Update records a player's new cumulative score. It reports whether the
// ranking changed; a score that does not qualify is a no-op.
func (t *Top3) Update(player common.Address, score uint64) bool {
	filled, at := 0, -1
	for i := 0; i < TopK; i++ {
		if t.Players[i] == (common.Address{}) {
			break
		}
		filled++
		if t.Players[i] == player {
			at = i
		}
	}

	switch {
	case at >= 0:
		if t.Scores[at] == score {
			return false
		}
		t.Scores[at] = score
		t.sortFrom(at)
	case filled < TopK:
		t.Players[filled] = player
		t.Scores[filled] = score
		t.sortFrom(filled)
	case score > t.Scores[TopK-1]:
		t.Players[TopK-1] = player
		t.Scores[TopK-1] = score
		t.sortFrom(TopK - 1)
	default:
		return false
	}
	return true
}

// Filled returns the number of occupied slots.
func (t *Top3) Filled() int {
	n := 0
	for _, p := range t.Players {
		if p != (common.Address{}) {
			n++
		}
	}
	return n
}

// sortFrom moves slot i towards the front past every slot with a strictly
// lower score. Scores only grow, so one insertion pass restores the order.
func (t *Top3) sortFrom(i int) {
	for ; i > 0 && t.Scores[i] > t.Scores[i-1]; i-- {
		t.Players[i], t.Players[i-1] = t.Players[i-1], t.Players[i]
		t.Scores[i], t.Scores[i-1] = t.Scores[i-1], t.Scores[i]
	}
}
