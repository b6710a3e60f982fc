package loadtest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/pulse/internal/domain/types"
)

// verify checks each player's standing against its receipt and that the
// top 3 is ordered and not beaten by any observed total.
func verify(ctx context.Context, cl *client, roundID uint64, totals map[common.Address]uint64, stats *Stats) error {
	base := fmt.Sprintf("/rounds/%d", roundID)

	var best uint64
	for p, want := range totals {
		var got types.Player
		status, apiErr, err := cl.call(ctx, http.MethodGet, base+"/players/"+p.Hex(), nil, nil, &got)
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return fmt.Errorf("%w: player %s: %s", ErrRequest, p.Hex(), apiErr.Message)
		}
		if got.TotalScore != want {
			return fmt.Errorf("%w: player %s has %d, receipt said %d", ErrMismatch, p.Hex(), got.TotalScore, want)
		}
		best = max(best, want)
		stats.Verified++
	}

	var top []types.Entry
	status, apiErr, err := cl.call(ctx, http.MethodGet, base+"/top3", nil, nil, &top)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("%w: top3: %s", ErrRequest, apiErr.Message)
	}
	return checkTop(top, best, len(totals))
}

func checkTop(top []types.Entry, best uint64, players int) error {
	if players > 0 && len(top) == 0 {
		return fmt.Errorf("%w: empty top 3", ErrMismatch)
	}
	for i := 1; i < len(top); i++ {
		if top[i].Score > top[i-1].Score {
			return fmt.Errorf("%w: top 3 out of order at rank %d", ErrMismatch, top[i].Rank)
		}
	}
	if len(top) > 0 && top[0].Score < best {
		return fmt.Errorf("%w: leader has %d, a player reached %d", ErrMismatch, top[0].Score, best)
	}
	return nil
}
