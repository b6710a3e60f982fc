package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/holiman/uint256"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 10

type fundRequest struct {
	Amount string `json:"amount"`
}

func (f fundRequest) amount() (*uint256.Int, error) {
	raw := strings.TrimSpace(f.Amount)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, f.Amount)
	}
	return v, nil
}

// submit authenticates the caller, fills tx and runs it through the engine.
func (s *Server) submit(w http.ResponseWriter, r *http.Request, tx model.Tx) { //nolint:gocritic // value semantics
	from, err := caller(r)
	if err != nil {
		writeError(w, err)
		return
	}
	tx.Caller = from
	tx.ID = strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))

	rcpt, err := s.engine.Submit(r.Context(), tx)
	if err != nil {
		status, _ := classify(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error(r.Context(), "transaction failed",
				logger.String("kind", string(tx.Kind)),
				logger.String("caller", from.Hex()),
				logger.Error(err),
			)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rcpt)
}

// handleStartRound handles POST /rounds.
func (s *Server) handleStartRound(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, model.Tx{Kind: model.TxStartRound})
}

// handleFund handles POST /rounds/current/fund.
func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	var req fundRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	amount, err := req.amount()
	if err != nil {
		writeError(w, err)
		return
	}
	s.submit(w, r, model.Tx{Kind: model.TxFund, Value: amount})
}

// handleWork handles POST /work.
func (s *Server) handleWork(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, model.Tx{Kind: model.TxWork})
}

// handleSettle handles POST /rounds/{id}/settle.
func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	s.submit(w, r, model.Tx{Kind: model.TxSettle, RoundID: id})
}

// handleWithdraw handles POST /withdraw.
func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, model.Tx{Kind: model.TxWithdraw})
}

// handleSweep handles POST /unclaimed/sweep.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	s.submit(w, r, model.Tx{Kind: model.TxSweepUnclaimed})
}
