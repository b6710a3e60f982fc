package service

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/okian/pulse/internal/domain/game"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
)

// ledgerNow is the time a transaction submitted now would be stamped with.
// Callers hold s.mu.
func (s *Service) ledgerNow() uint64 {
	now := uint64(s.clock().Unix())
	if now < s.lastTime {
		return s.lastTime
	}
	return now
}

func (s *Service) ready() error {
	if s.state == nil {
		return ErrNotStarted
	}
	return nil
}

// Overview returns the owner, the latest round id and the unswept balance.
func (s *Service) Overview(_ context.Context) (types.Owner, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return types.Owner{}, err
	}
	return types.Owner{
		Owner:          s.state.Owner().Hex(),
		CurrentRoundID: s.state.CurrentRoundID(),
		Unclaimed:      types.Amount(s.state.UnclaimedBalance()),
	}, nil
}

// Owner returns the operator address.
func (s *Service) Owner() common.Address {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return s.genesis.Owner
	}
	return s.state.Owner()
}

// CurrentRoundID returns the latest round id, or 0 before the first round.
func (s *Service) CurrentRoundID() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return 0
	}
	return s.state.CurrentRoundID()
}

// CurrentRound returns the latest round.
func (s *Service) CurrentRound(_ context.Context) (types.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return types.Round{}, err
	}
	r, err := s.state.CurrentRound()
	if err != nil {
		return types.Round{}, err
	}
	return types.NewRound(r, s.ledgerNow()), nil
}

// Round returns round id.
func (s *Service) Round(_ context.Context, id uint64) (types.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return types.Round{}, err
	}
	r, err := s.state.Round(id)
	if err != nil {
		return types.Round{}, err
	}
	return types.NewRound(r, s.ledgerNow()), nil
}

// Rounds returns every round in id order.
func (s *Service) Rounds(_ context.Context) ([]types.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	now := s.ledgerNow()
	out := make([]types.Round, 0, s.state.CurrentRoundID())
	for id := uint64(1); id <= s.state.CurrentRoundID(); id++ {
		r, err := s.state.Round(id)
		if err != nil {
			return nil, err
		}
		out = append(out, types.NewRound(r, now))
	}
	return out, nil
}

// Top3 returns the ranked slots of round id.
func (s *Service) Top3(_ context.Context, id uint64) ([]types.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return nil, err
	}
	top, err := s.state.Top3(id)
	if err != nil {
		return nil, err
	}
	return types.Entries(top), nil
}

// Player returns a player's standing in round id.
func (s *Service) Player(_ context.Context, id uint64, player common.Address) (types.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.ready(); err != nil {
		return types.Player{}, err
	}
	total, err := s.state.TotalScore(id, player)
	if err != nil {
		return types.Player{}, err
	}
	hour, worked, err := s.state.LastWorkedHour(id, player)
	if err != nil {
		return types.Player{}, err
	}
	v := types.Player{
		RoundID:    id,
		Player:     player.Hex(),
		TotalScore: total,
		Owed:       types.Amount(s.state.Owed(player)),
	}
	if worked {
		v.LastWorkedHour = &hour
	}
	return v, nil
}

// Logs returns the Worked events of round id, optionally for one player.
func (s *Service) Logs(ctx context.Context, id uint64, player *common.Address) ([]model.Log, error) {
	s.mu.RLock()
	if err := s.ready(); err != nil {
		s.mu.RUnlock()
		return nil, err
	}
	_, err := s.state.Round(id)
	j := s.journal
	s.mu.RUnlock()
	if err != nil {
		return nil, err
	}

	recs, err := j.Round(ctx, id)
	if err != nil {
		return nil, err
	}
	out := []model.Log{}
	for _, rec := range recs {
		if rec.Receipt == nil || !rec.Receipt.OK() {
			continue
		}
		for _, l := range rec.Receipt.Logs {
			if l.Name != model.LogWorked || l.RoundID != id {
				continue
			}
			if player != nil && l.Player != *player {
				continue
			}
			out = append(out, l)
		}
	}
	return out, nil
}

// Height returns the height of the last committed record.
func (s *Service) Height() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.height
}

// Params returns the engine parameters.
func (s *Service) Params() game.Params {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == nil {
		return game.ParamsFromGenesis(s.genesis)
	}
	return s.state.Params()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":         s.started,
		"stopping":        s.stopping,
		"halted":          s.halted != nil,
		"height":          s.height,
		"ledgerTime":      s.lastTime,
		"payoutWorkers":   s.payoutWorkers,
		"payoutQueueSize": s.payoutQueueSize,
	}
	if s.state != nil {
		stats["currentRoundId"] = s.state.CurrentRoundID()
		stats["held"] = types.Amount(s.held)
		stats["unclaimed"] = types.Amount(s.state.UnclaimedBalance())
	}
	if s.queue != nil {
		stats["payoutQueueLength"] = s.queue.Len()
	}
	if s.deduper != nil {
		stats["dedupeEntries"] = s.deduper.Size()
	}
	return stats
}
