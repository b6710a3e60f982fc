package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted       = errors.New("service not started")
	ErrStopping         = errors.New("service is stopping")
	ErrHalted           = errors.New("service halted after a journal failure")
	ErrDuplicateTx      = errors.New("transaction already submitted")
	ErrReservedTx       = errors.New("transaction kind is reserved for the system")
	ErrReservedTxID     = errors.New("transaction id is reserved for the system")
	ErrReplayDivergence = errors.New("journal replay diverged from stored receipts")
	ErrGenesisMismatch  = errors.New("configured parameters differ from the journal genesis")
)
