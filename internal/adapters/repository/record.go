package repository

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/okian/pulse/internal/domain/model"
)

// Record is one block of the journal. The record at height 0 carries the
// genesis parameters; every later record carries one transaction and its
// receipt.
type Record struct {
	Height    uint64         `json:"height"`
	Timestamp uint64         `json:"timestamp"`
	PrevHash  common.Hash    `json:"prev_hash"`
	Hash      common.Hash    `json:"hash"`
	Genesis   *model.Genesis `json:"genesis,omitempty"`
	Tx        *model.Tx      `json:"tx,omitempty"`
	Receipt   *model.Receipt `json:"receipt,omitempty"`
}

// body is the hashed part of a record.
type body struct {
	Height    uint64         `json:"height"`
	Timestamp uint64         `json:"timestamp"`
	Genesis   *model.Genesis `json:"genesis,omitempty"`
	Tx        *model.Tx      `json:"tx,omitempty"`
	Receipt   *model.Receipt `json:"receipt,omitempty"`
}

// ComputeHash returns keccak256(prevHash || json(body)).
func (r *Record) ComputeHash() (common.Hash, error) {
	b, err := json.Marshal(body{
		Height:    r.Height,
		Timestamp: r.Timestamp,
		Genesis:   r.Genesis,
		Tx:        r.Tx,
		Receipt:   r.Receipt,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("repository: encode record %d: %w", r.Height, err)
	}
	return crypto.Keccak256Hash(r.PrevHash.Bytes(), b), nil
}

// Seal links r to prev and fills in its hash.
func (r *Record) Seal(prev common.Hash) error {
	r.PrevHash = prev
	h, err := r.ComputeHash()
	if err != nil {
		return err
	}
	r.Hash = h
	return nil
}

// RoundID returns the round a record touches, or 0.
func (r *Record) RoundID() uint64 {
	if r.Receipt != nil {
		for _, l := range r.Receipt.Logs {
			if l.RoundID != 0 {
				return l.RoundID
			}
		}
	}
	if r.Tx != nil {
		return r.Tx.RoundID
	}
	return 0
}

func (r *Record) validate() error {
	switch {
	case r.Height == 0 && r.Genesis == nil:
		return fmt.Errorf("%w: height 0 without genesis", ErrBadRecord)
	case r.Height > 0 && (r.Tx == nil || r.Receipt == nil):
		return fmt.Errorf("%w: height %d without transaction", ErrBadRecord, r.Height)
	}
	return nil
}

// Verify checks that next follows prev: consecutive height, matching link
// and a hash that matches its contents. A nil prev means next must be the
// genesis record.
func Verify(prev, next *Record) error {
	want, link := uint64(0), common.Hash{}
	if prev != nil {
		want, link = prev.Height+1, prev.Hash
	}
	if next.Height != want {
		return fmt.Errorf("%w: want %d, got %d", ErrHeightGap, want, next.Height)
	}
	if err := next.validate(); err != nil {
		return err
	}
	if next.PrevHash != link {
		return fmt.Errorf("%w: record %d does not link to its predecessor", ErrBrokenChain, next.Height)
	}
	h, err := next.ComputeHash()
	if err != nil {
		return err
	}
	if h != next.Hash {
		return fmt.Errorf("%w: record %d hash mismatch", ErrBrokenChain, next.Height)
	}
	return nil
}
