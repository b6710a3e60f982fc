package model

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// ReceiptStatus reports whether a transition committed.
type ReceiptStatus string

// Receipt statuses.
const (
	StatusOK       ReceiptStatus = "ok"
	StatusRejected ReceiptStatus = "rejected"
)

// LogName identifies an emitted event.
type LogName string

// Events emitted by the engine.
const (
	LogRoundStarted LogName = "RoundStarted"
	LogFunded       LogName = "Funded"
	LogWorked       LogName = "Worked"
	LogSettled      LogName = "Settled"
	LogPayout       LogName = "Payout"
	LogOwedCredited LogName = "OwedCredited"
	LogWithdrawn    LogName = "Withdrawn"
	LogSwept        LogName = "UnclaimedSwept"
)

// Log is an event emitted by a committed transition. Fields not used by a
// given event stay at their zero value.
type Log struct {
	Name      LogName        `json:"name"`
	RoundID   uint64         `json:"round_id"`
	Player    common.Address `json:"player"`
	HourIndex uint32         `json:"hour_index,omitempty"`
	Points    uint64         `json:"points,omitempty"`
	NewTotal  uint64         `json:"new_total,omitempty"`
	Rank      int            `json:"rank,omitempty"`
	Amount    *uint256.Int   `json:"amount,omitempty"`
}

// Transfer is an outbound value movement the host must perform after the
// transition that produced it has been committed.
type Transfer struct {
	TxID    string         `json:"tx_id"`
	RoundID uint64         `json:"round_id"`
	To      common.Address `json:"to"`
	Amount  *uint256.Int   `json:"amount"`
}

// Receipt is the outcome of one transaction at a ledger height.
type Receipt struct {
	TxID      string        `json:"tx_id"`
	Kind      TxKind        `json:"kind"`
	Height    uint64        `json:"height"`
	Timestamp uint64        `json:"timestamp"`
	Status    ReceiptStatus `json:"status"`
	Error     string        `json:"error,omitempty"`
	Logs      []Log         `json:"logs,omitempty"`
	Transfers []Transfer    `json:"transfers,omitempty"`
}

// OK reports whether the receipt is for a committed transition.
func (r Receipt) OK() bool { return r.Status == StatusOK }
