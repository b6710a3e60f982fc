// Package repository persists the transaction journal: an append-only,
// keccak hash-chained sequence of records from which the engine state can be
// rebuilt.
package repository

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Journal is the durable log of committed transactions.
type Journal interface {
	// Append seals rec against the current head and stores it. rec.Height
	// must be the next height: 0 for an empty journal, head+1 otherwise.
	Append(ctx context.Context, rec *Record) error

	// Head returns the last record, or ErrEmpty.
	Head(ctx context.Context) (Record, error)

	// Iterate calls fn for every record in height order, verifying the hash
	// chain as it goes. fn must not append to the same journal.
	Iterate(ctx context.Context, fn func(Record) error) error

	// Round returns the records touching roundID in height order.
	Round(ctx context.Context, roundID uint64) ([]Record, error)

	Close() error
}

// nextLink returns the height and previous hash a new record must carry.
func nextLink(head *Record) (uint64, common.Hash) {
	if head == nil {
		return 0, common.Hash{}
	}
	return head.Height + 1, head.Hash
}

func seal(head *Record, rec *Record) error {
	height, prev := nextLink(head)
	if rec.Height != height {
		return fmt.Errorf("%w: want %d, got %d", ErrHeightGap, height, rec.Height)
	}
	if err := rec.validate(); err != nil {
		return err
	}
	return rec.Seal(prev)
}

// MemoryJournal keeps records in memory. It is used in tests and when no
// database path is configured.
type MemoryJournal struct {
	mu      sync.RWMutex
	records []Record
	closed  bool
}

// NewMemoryJournal creates an empty in-memory journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{}
}

// Append seals rec onto the head and stores it.
func (j *MemoryJournal) Append(_ context.Context, rec *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	var head *Record
	if n := len(j.records); n > 0 {
		head = &j.records[n-1]
	}
	if err := seal(head, rec); err != nil {
		return err
	}
	j.records = append(j.records, *rec)
	return nil
}

// Head returns the last record, or ErrEmpty.
func (j *MemoryJournal) Head(_ context.Context) (Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if len(j.records) == 0 {
		return Record{}, ErrEmpty
	}
	return j.records[len(j.records)-1], nil
}

// Iterate calls fn for every record in height order over a snapshot.
func (j *MemoryJournal) Iterate(ctx context.Context, fn func(Record) error) error {
	j.mu.RLock()
	records := append([]Record(nil), j.records...)
	j.mu.RUnlock()

	var prev *Record
	for i := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := Verify(prev, &records[i]); err != nil {
			return err
		}
		if err := fn(records[i]); err != nil {
			return err
		}
		prev = &records[i]
	}
	return nil
}

// Round returns the records that touch roundID.
func (j *MemoryJournal) Round(_ context.Context, roundID uint64) ([]Record, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	var out []Record
	for i := range j.records {
		if j.records[i].RoundID() == roundID {
			out = append(out, j.records[i])
		}
	}
	return out, nil
}

// Close refuses further appends. Records stay readable.
func (j *MemoryJournal) Close() error {
	j.mu.Lock()
	j.closed = true
	j.mu.Unlock()
	return nil
}
