// Package queue buffers payout transfers between the engine, which emits
// them after a commit, and the workers that execute them.
package queue

import (
	"context"
	"sync"

	"github.com/okian/pulse/internal/domain/model"
	"github.com/okian/pulse/pkg/metrics"
)

const defaultCapacity = 4096

// Transfer is the payload flowing through the queue.
type Transfer = model.Transfer

// Queue provides non-blocking enqueue and blocking dequeue.
type Queue interface {
	// Enqueue adds t. It returns false if the queue is full or closed.
	Enqueue(ctx context.Context, t Transfer) bool

	// Next blocks until a transfer is available. ok is false once the queue
	// is closed and drained, or ctx is done.
	Next(ctx context.Context) (t Transfer, ok bool)

	// Len returns the number of queued transfers.
	Len() int

	// Close stops accepting transfers. Queued transfers remain readable.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue with a buffered channel.
type InMemoryQueue struct {
	items    chan Transfer
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a queue configured by opts.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultCapacity}
	for _, opt := range opts {
		opt(q)
	}
	q.items = make(chan Transfer, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	q.observe()
	return q
}

// Enqueue adds t without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, t Transfer) bool { //nolint:gocritic // passed by value into the channel
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		q.refuse("closed")
		return false
	}
	if ctx.Err() != nil {
		q.refuse("context_cancelled")
		return false
	}

	select {
	case q.items <- t:
		metrics.RecordQueueEnqueue()
		q.observe()
		return true
	default:
		q.refuse("queue_full")
		return false
	}
}

// Next returns the oldest queued transfer.
func (q *InMemoryQueue) Next(ctx context.Context) (Transfer, bool) {
	select {
	case t, ok := <-q.items:
		if !ok {
			return Transfer{}, false
		}
		metrics.RecordQueueDequeue()
		q.observe()
		return t, true
	case <-ctx.Done():
		return Transfer{}, false
	}
}

// Len returns the number of queued transfers.
func (q *InMemoryQueue) Len() int {
	return len(q.items)
}

// Close stops accepting transfers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.items)
	q.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}

func (q *InMemoryQueue) refuse(reason string) {
	metrics.RecordQueueEnqueueError()
	metrics.RecordErrorByComponent("queue", reason)
}

func (q *InMemoryQueue) observe() {
	size := len(q.items)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) / float64(q.capacity))
}
