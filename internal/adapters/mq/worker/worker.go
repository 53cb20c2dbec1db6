// Package worker drains the persistence queue and applies storage
// operations against a gateway. Workers are fire-and-forget from the match
// controllers' point of view: a failed write is logged and counted, never
// surfaced back to the scoring path.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/pkg/logger"
	"github.com/tatami-systems/tatami/pkg/metrics"
)

// Queue defines how workers receive operations.
type Queue interface {
	Dequeue(ctx context.Context) <-chan store.Op
}

// Worker applies persistence operations until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown stops the worker after the closed queue is drained.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker against a store gateway.
type InMemoryWorker struct {
	queue   Queue
	gateway store.Gateway
	name    string

	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, gateway store.Gateway, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		gateway:  gateway,
		name:     "worker",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("worker"),
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}

	return w
}

// Run starts the worker loop. On shutdown the worker keeps applying queued
// operations until the queue is closed and drained, so accepted ops are
// never dropped by a graceful stop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	ops := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			w.drain(ctx, ops)
			return
		case op, ok := <-ops:
			if !ok {
				return
			}
			if err := w.apply(ctx, op); err != nil {
				w.logger.Error(ctx, "persistence op failed", logger.Error(err))
			}
		}
	}
}

// drain applies remaining operations until the channel closes. The caller
// must have closed the queue, or this blocks until ctx is canceled.
func (w *InMemoryWorker) drain(ctx context.Context, ops <-chan store.Op) {
	for {
		select {
		case <-ctx.Done():
			return
		case op, ok := <-ops:
			if !ok {
				return
			}
			if err := w.apply(ctx, op); err != nil {
				w.logger.Error(ctx, "persistence op failed", logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker once it has drained the closed queue.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	close(w.shutdown)

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// apply executes a single storage operation and records its outcome.
func (w *InMemoryWorker) apply(ctx context.Context, op store.Op) error {
	start := time.Now()
	err := op.Apply(ctx, w.gateway)
	metrics.RecordPersistLatency(float64(time.Since(start).Milliseconds()))

	if err != nil {
		metrics.RecordPersistError(string(op.Kind))
		metrics.RecordErrorByComponent("worker", string(op.Kind))
		w.logger.Error(ctx, "failed to apply op",
			logger.String("kind", string(op.Kind)),
			logger.String("match_id", op.MatchID),
			logger.Error(err),
		)
		return fmt.Errorf("apply %s for match %s: %w", op.Kind, op.MatchID, err)
	}

	metrics.RecordPersistOp(string(op.Kind))
	return nil
}
