package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tatami-systems/tatami/internal/adapters/store"
	"github.com/tatami-systems/tatami/pkg/metrics"
)

const poolShutdownTimeout = 30 * time.Second

// Pool runs a fixed set of workers over one shared queue.
type Pool struct {
	workers []*InMemoryWorker

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// NewPool creates a pool of count workers draining queue into gateway.
func NewPool(count int, queue Queue, gateway store.Gateway, opts ...Option) *Pool {
	if count < 1 {
		count = 1
	}
	p := &Pool{workers: make([]*InMemoryWorker, 0, count)}
	for i := 0; i < count; i++ {
		named := append([]Option{WithName(fmt.Sprintf("persist-%d", i))}, opts...)
		p.workers = append(p.workers, NewInMemoryWorker(queue, gateway, named...))
	}
	return p
}

// Start launches every worker. Safe to call once.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
	p.started = true
	metrics.UpdatePersistWorkers(len(p.workers))
}

// Stop shuts down all workers, waiting up to the pool shutdown timeout.
func (p *Pool) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), poolShutdownTimeout)
	defer cancel()
	for _, w := range p.workers {
		_ = w.Shutdown(ctx)
	}
	if p.cancel != nil {
		p.cancel()
	}
	p.started = false
	metrics.UpdatePersistWorkers(0)
}

// Size returns the number of workers in the pool.
func (p *Pool) Size() int {
	return len(p.workers)
}
