package api

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
)

// handleOwner handles GET /owner.
func (s *Server) handleOwner(w http.ResponseWriter, r *http.Request) {
	o, err := s.engine.Overview(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// handleRounds handles GET /rounds.
func (s *Server) handleRounds(w http.ResponseWriter, r *http.Request) {
	rounds, err := s.engine.Rounds(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rounds)
}

// handleCurrentRound handles GET /rounds/current.
func (s *Server) handleCurrentRound(w http.ResponseWriter, r *http.Request) {
	round, err := s.engine.CurrentRound(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// handleRound handles GET /rounds/{id}.
func (s *Server) handleRound(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	round, err := s.engine.Round(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// handleTop3 handles GET /rounds/{id}/top3.
func (s *Server) handleTop3(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	top, err := s.engine.Top3(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, top)
}

// handlePlayer handles GET /rounds/{id}/players/{addr}.
func (s *Server) handlePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	player, err := parseAddress(chi.URLParam(r, "addr"))
	if err != nil {
		writeError(w, err)
		return
	}
	p, err := s.engine.Player(r.Context(), id, player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// handleLogs handles GET /rounds/{id}/logs?player=.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	id, err := roundID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var player *common.Address
	if raw := r.URL.Query().Get("player"); raw != "" {
		addr, err := parseAddress(raw)
		if err != nil {
			writeError(w, err)
			return
		}
		player = &addr
	}
	logs, err := s.engine.Logs(r.Context(), id, player)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}
