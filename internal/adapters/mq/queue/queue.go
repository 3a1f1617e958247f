// Package queue carries match notices from the request path to the
// notifier workers.
//
// Enqueue never blocks: a full or closed queue drops the notice, so
// delivery can never slow down or fail an award.
package queue

import (
	"context"
	"sync"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/metrics"
)

const defaultQueueCapacity = 1024

// Notice is the payload type flowing through the queue.
type Notice = model.MatchNotice

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a notice to the queue.
	// Returns false if the queue is full or closed and the notice was dropped.
	Enqueue(ctx context.Context, n Notice) bool

	// Dequeue returns a channel that receives notices as they become available.
	// The channel is closed when the queue is closed and drained.
	Dequeue(ctx context.Context) <-chan Notice

	// Len returns the current number of queued notices.
	Len(ctx context.Context) int

	// Close stops accepting notices. Already queued notices can still be drained.
	Close() error

	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	notices  chan Notice
	capacity int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity: defaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(q)
	}
	q.notices = make(chan Notice, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	return q
}

// Enqueue adds a notice to the queue.
func (q *InMemoryQueue) Enqueue(ctx context.Context, n Notice) bool { //nolint:gocritic // hugeParam: passed by value for channel semantics
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueDropped("closed")
		return false
	}

	select {
	case <-ctx.Done():
		metrics.RecordQueueDropped("context_cancelled")
		return false
	default:
	}

	select {
	case q.notices <- n:
		metrics.RecordQueueEnqueue()
		metrics.UpdateQueueSize(len(q.notices))
		return true
	default:
		metrics.RecordQueueDropped("queue_full")
		return false
	}
}

// Dequeue returns a channel that receives notices as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Notice {
	out := make(chan Notice)
	go func() {
		defer close(out)
		for n := range q.notices {
			select {
			case out <- n:
				metrics.UpdateQueueSize(len(q.notices))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued notices.
func (q *InMemoryQueue) Len(_ context.Context) int {
	size := len(q.notices)
	metrics.UpdateQueueSize(size)
	return size
}

// Capacity returns the maximum number of queued notices.
func (q *InMemoryQueue) Capacity() int {
	return q.capacity
}

// Close stops accepting notices.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.notices)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
