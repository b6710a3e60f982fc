// Package model contains domain models passed between layers.
package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// TxKind names a state transition.
type TxKind string

// Transaction kinds accepted by the engine.
const (
	TxStartRound     TxKind = "start_round"
	TxFund           TxKind = "fund"
	TxWork           TxKind = "work"
	TxSettle         TxKind = "settle"
	TxWithdraw       TxKind = "withdraw"
	TxSweepUnclaimed TxKind = "sweep_unclaimed"
	TxCreditOwed     TxKind = "credit_owed" // system only, issued when a payout transfer fails
)

// Tx is a request to apply one state transition. The ledger stamps the
// timestamp; callers never choose it.
type Tx struct {
	ID      string         `json:"id"`                 // client id for idempotency
	Kind    TxKind         `json:"kind"`               // transition to apply
	Caller  common.Address `json:"caller"`             // authenticated sender
	Value   *uint256.Int   `json:"value,omitempty"`    // fund amount, credited amount
	RoundID uint64         `json:"round_id,omitempty"` // settle, credit_owed
	To      common.Address `json:"to"`                 // credit_owed beneficiary
}

// Genesis fixes the engine parameters for the lifetime of a journal.
type Genesis struct {
	Owner                common.Address `json:"owner"`
	RoundDurationSeconds uint64         `json:"round_duration_seconds"`
	DecayMaxPoints       uint64         `json:"decay_max_points"`
	DecayMinPoints       uint64         `json:"decay_min_points"`
}
