package bank

import "github.com/holiman/uint256"

// Option configures an InMemoryBank.
type Option func(*InMemoryBank)

// WithReserve seeds the reserve.
func WithReserve(amount *uint256.Int) Option {
	return func(b *InMemoryBank) {
		if amount != nil {
			b.reserve.Set(amount)
		}
	}
}

// WithHook installs a hook run on every transfer.
func WithHook(h Hook) Option {
	return func(b *InMemoryBank) {
		b.hook = h
	}
}
