package api

import (
	"errors"
	"net/http"

	service "github.com/okian/pulse/internal/app"
	"github.com/okian/pulse/internal/domain/game"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrInvalidCaller  = errors.New("missing or invalid X-Caller-Address")
	ErrInvalidAddress = errors.New("invalid address")
	ErrInvalidAmount  = errors.New("amount must be a decimal integer")
	ErrRateLimited    = errors.New("rate limit exceeded")
)

type errorKind struct {
	err    error
	status int
	code   string
}

// errorKinds maps engine and service errors to responses. The first match
// wins.
var errorKinds = []errorKind{ //nolint:gochecknoglobals // lookup table
	{game.ErrNotOwner, http.StatusForbidden, "not_owner"},
	{game.ErrAlreadyScoredThisHour, http.StatusTooManyRequests, "already_scored_this_hour"},
	{game.ErrInvalidRoundID, http.StatusNotFound, "invalid_round_id"},
	{game.ErrNoRounds, http.StatusNotFound, "no_rounds"},
	{game.ErrRoundAlreadyActive, http.StatusConflict, "round_already_active"},
	{game.ErrRoundNotActive, http.StatusConflict, "round_not_active"},
	{game.ErrNoActiveRound, http.StatusConflict, "no_active_round"},
	{game.ErrRoundNotEnded, http.StatusConflict, "round_not_ended"},
	{game.ErrAlreadySettled, http.StatusConflict, "already_settled"},
	{game.ErrRoundNotSettled, http.StatusConflict, "round_not_settled"},
	{game.ErrNothingOwed, http.StatusConflict, "nothing_owed"},
	{game.ErrNothingUnclaimed, http.StatusConflict, "nothing_unclaimed"},
	{game.ErrZeroAmount, http.StatusBadRequest, "zero_amount"},
	{game.ErrAmountOverflow, http.StatusBadRequest, "amount_overflow"},
	{game.ErrTimeOverflow, http.StatusConflict, "time_overflow"},
	{game.ErrInvalidCaller, http.StatusBadRequest, "invalid_caller"},
	{ErrInvalidCaller, http.StatusBadRequest, "invalid_caller"},
	{ErrInvalidAddress, http.StatusBadRequest, "invalid_address"},
	{ErrInvalidAmount, http.StatusBadRequest, "invalid_amount"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{ErrRateLimited, http.StatusTooManyRequests, "rate_limited"},
	{service.ErrDuplicateTx, http.StatusConflict, "duplicate_tx"},
	{service.ErrReservedTx, http.StatusBadRequest, "reserved_tx"},
	{service.ErrReservedTxID, http.StatusBadRequest, "reserved_tx_id"},
	{service.ErrHalted, http.StatusServiceUnavailable, "halted"},
	{service.ErrStopping, http.StatusServiceUnavailable, "stopping"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "not_started"},
}

// classify returns the HTTP status and error code for err.
func classify(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal_error"
}
