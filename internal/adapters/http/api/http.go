// Package api exposes the round engine over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/okian/pulse/internal/adapters/http/swagger"
	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/internal/domain/types"
	"github.com/okian/pulse/pkg/logger"
)

// Engine is what the handlers need from the round engine.
type Engine interface {
	Submit(ctx context.Context, tx model.Tx) (model.Receipt, error)

	Overview(ctx context.Context) (types.Owner, error)
	CurrentRound(ctx context.Context) (types.Round, error)
	Round(ctx context.Context, id uint64) (types.Round, error)
	Rounds(ctx context.Context) ([]types.Round, error)
	Top3(ctx context.Context, id uint64) ([]types.Entry, error)
	Player(ctx context.Context, id uint64, player common.Address) (types.Player, error)
	Logs(ctx context.Context, id uint64, player *common.Address) ([]model.Log, error)

	StatsProvider
}

// Server wires HTTP routes for the engine API.
type Server struct {
	engine  Engine
	logger  logger.Logger
	limiter *IPRateLimiter

	rateLimit rate.Limit
	burst     int
}

// NewServer creates a new API server.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{engine: engine}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	if s.rateLimit > 0 {
		s.limiter = NewIPRateLimiter(s.rateLimit, s.burst)
	}
	return s
}

// Handler returns a router serving the engine API, ops endpoints and the
// API docs.
func (s *Server) Handler(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	s.Register(ctx, r)
	swagger.Register(ctx, r)
	return r
}

// Register attaches all API routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Get("/healthz", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Handle("/metrics", metricsHandler())

	r.Get("/owner", s.handleOwner)
	r.Get("/rounds", s.handleRounds)
	r.Get("/rounds/current", s.handleCurrentRound)
	r.Get("/rounds/{id}", s.handleRound)
	r.Get("/rounds/{id}/top3", s.handleTop3)
	r.Get("/rounds/{id}/players/{addr}", s.handlePlayer)
	r.Get("/rounds/{id}/logs", s.handleLogs)

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(RateLimitMiddleware(s.limiter))
		}
		r.Post("/rounds", s.handleStartRound)
		r.Post("/rounds/current/fund", s.handleFund)
		r.Post("/work", s.handleWork)
		r.Post("/rounds/{id}/settle", s.handleSettle)
		r.Post("/withdraw", s.handleWithdraw)
		r.Post("/unclaimed/sweep", s.handleSweep)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeJSON(w, status, errorResponse{Code: code, Message: err.Error()})
}
