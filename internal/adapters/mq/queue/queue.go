// Package queue provides the bounded in-memory buffer between the match
// controllers and the persistence workers. Controllers enqueue storage
// operations without blocking; workers drain them asynchronously.
package queue

import (
	"context"
	"sync"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/pkg/metrics"
)

// Default queue configuration constants.
const (
	defaultCapacity   = 10000
	defaultBufferSize = 10000
)

// Op is the payload type flowing through the queue.
type Op = store.Op

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds an operation to the queue.
	// Returns false if the queue is full or closed and the op was dropped.
	Enqueue(ctx context.Context, op Op) bool

	// Dequeue returns a channel that receives operations as they become
	// available. The channel is closed when the queue is closed.
	Dequeue(ctx context.Context) <-chan Op

	// Len returns the current number of queued operations.
	Len(ctx context.Context) int

	// Close shuts down the queue. After closing, no new operations can be
	// enqueued; already-queued operations remain readable until drained.
	Close() error

	// IsClosed reports whether the queue has been closed.
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	ops        chan Op
	capacity   int
	bufferSize int

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue with configuration options.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{
		capacity:   defaultCapacity,
		bufferSize: defaultBufferSize,
	}
	for _, opt := range opts {
		opt(q)
	}
	if q.bufferSize < q.capacity {
		q.bufferSize = q.capacity
	}
	q.ops = make(chan Op, q.bufferSize)

	metrics.UpdatePersistQueueCapacity(q.capacity)
	metrics.UpdatePersistQueueSize(0)
	metrics.UpdatePersistQueueUtilization(0.0)

	return q
}

// Enqueue adds an operation to the queue without blocking the caller.
func (q *InMemoryQueue) Enqueue(ctx context.Context, op Op) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordPersistDropped()
		metrics.RecordErrorByComponent("queue", "closed")
		return false
	}
	if len(q.ops) >= q.capacity {
		metrics.RecordPersistDropped()
		metrics.RecordErrorByComponent("queue", "capacity_exceeded")
		return false
	}

	select {
	case q.ops <- op:
		size := len(q.ops)
		metrics.UpdatePersistQueueSize(size)
		metrics.UpdatePersistQueueUtilization(float64(size) / float64(q.capacity))
		return true
	case <-ctx.Done():
		metrics.RecordPersistDropped()
		metrics.RecordErrorByComponent("queue", "context_cancelled")
		return false
	default:
		metrics.RecordPersistDropped()
		metrics.RecordErrorByComponent("queue", "queue_full")
		return false
	}
}

// Dequeue returns a channel that receives operations as they become available.
func (q *InMemoryQueue) Dequeue(ctx context.Context) <-chan Op {
	out := make(chan Op)
	go func() {
		defer close(out)
		for op := range q.ops {
			select {
			case out <- op:
				size := len(q.ops)
				metrics.UpdatePersistQueueSize(size)
				metrics.UpdatePersistQueueUtilization(float64(size) / float64(q.capacity))
			case <-ctx.Done():
				return
			}
		}
	}()
	return out
}

// Len returns the current number of queued operations.
func (q *InMemoryQueue) Len(ctx context.Context) int {
	size := len(q.ops)
	metrics.UpdatePersistQueueSize(size)
	metrics.UpdatePersistQueueUtilization(float64(size) / float64(q.capacity))
	return size
}

// Close shuts down the queue.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil
	}
	close(q.ops)
	q.closed = true
	return nil
}

// IsClosed reports whether the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
