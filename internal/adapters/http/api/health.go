package api

import (
	"net/http"
)

type healthResponse struct {
	Status string `json:"status"`
	Height any    `json:"height,omitempty"`
}

// handleHealth handles GET /healthz. A halted or stopped engine reports 503.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.engine.GetStats()
	resp := healthResponse{Status: "ok", Height: stats["height"]}
	switch {
	case stats["halted"] == true:
		resp.Status = "halted"
	case stats["started"] != true, stats["stopping"] == true:
		resp.Status = "unavailable"
	}
	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
