package game

import "errors"

// Authorization errors.
var (
	ErrNotOwner      = errors.New("caller is not the owner")
	ErrInvalidCaller = errors.New("invalid caller address")
)

// Lifecycle errors.
var (
	ErrRoundAlreadyActive = errors.New("round already active")
	ErrRoundNotActive     = errors.New("round not active")
	ErrRoundNotEnded      = errors.New("round not ended")
	ErrAlreadySettled     = errors.New("round already settled")
	ErrNoActiveRound      = errors.New("no active round")
	ErrRoundNotSettled    = errors.New("round not settled")
)

// Rate-limit errors.
var (
	ErrAlreadyScoredThisHour = errors.New("already scored this hour")
)

// Input errors.
var (
	ErrInvalidRoundID   = errors.New("invalid round id")
	ErrNoRounds         = errors.New("no rounds yet")
	ErrZeroAmount       = errors.New("amount must be greater than zero")
	ErrAmountOverflow   = errors.New("amount overflows pool")
	ErrUnknownTx        = errors.New("unknown transaction kind")
	ErrInvalidParams    = errors.New("invalid engine parameters")
	ErrNothingOwed      = errors.New("nothing owed")
	ErrNothingUnclaimed = errors.New("nothing unclaimed")
	ErrNotWinner        = errors.New("beneficiary was not paid in round")
	ErrTimeOverflow     = errors.New("round end time overflows")
)
