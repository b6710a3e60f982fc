// Package bank moves value out of the engine's balance to players.
package bank

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Sentinel kinds for bank errors.
var (
	ErrRejected          = errors.New("transfer rejected by recipient")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidTransfer   = errors.New("invalid transfer")
)

// Bank performs value transfers. Implementations may call back into the
// engine; the engine only hands out transfers after committing the state
// that authorizes them.
type Bank interface {
	Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error
}

// Hook runs inside InMemoryBank.Transfer before the balance moves. Returning
// an error rejects the transfer.
type Hook func(ctx context.Context, to common.Address, amount *uint256.Int) error

// InMemoryBank keeps balances in memory. The engine's own balance is
// credited by Deposit and debited by each transfer.
type InMemoryBank struct {
	mu       sync.Mutex
	reserve  uint256.Int
	balances map[common.Address]*uint256.Int
	rejects  map[common.Address]bool
	hook     Hook
}

// NewInMemoryBank creates a bank with an empty reserve.
func NewInMemoryBank(opts ...Option) *InMemoryBank {
	b := &InMemoryBank{
		balances: make(map[common.Address]*uint256.Int),
		rejects:  make(map[common.Address]bool),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Deposit adds amount to the reserve transfers are paid from.
func (b *InMemoryBank) Deposit(amount *uint256.Int) {
	b.mu.Lock()
	b.reserve.Add(&b.reserve, amount)
	b.mu.Unlock()
}

// Reject makes every transfer to addr fail until cleared.
func (b *InMemoryBank) Reject(addr common.Address, reject bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if reject {
		b.rejects[addr] = true
		return
	}
	delete(b.rejects, addr)
}

// Transfer moves amount from the reserve to to.
func (b *InMemoryBank) Transfer(ctx context.Context, to common.Address, amount *uint256.Int) error {
	if to == (common.Address{}) || amount == nil || amount.IsZero() {
		return ErrInvalidTransfer
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	hook := b.hook
	rejected := b.rejects[to]
	b.mu.Unlock()

	if rejected {
		return fmt.Errorf("%w: %s", ErrRejected, to.Hex())
	}
	// The hook runs unlocked so it may re-enter the engine.
	if hook != nil {
		if err := hook(ctx, to, amount); err != nil {
			return err
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.reserve.Lt(amount) {
		return ErrInsufficientFunds
	}
	b.reserve.Sub(&b.reserve, amount)
	bal, ok := b.balances[to]
	if !ok {
		bal = new(uint256.Int)
		b.balances[to] = bal
	}
	bal.Add(bal, amount)
	return nil
}

// BalanceOf returns what addr has received.
func (b *InMemoryBank) BalanceOf(addr common.Address) uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.balances[addr]; ok {
		return *v
	}
	return uint256.Int{}
}

// Reserve returns the undistributed balance.
func (b *InMemoryBank) Reserve() uint256.Int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reserve
}
