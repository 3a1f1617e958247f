// Package worker delivers match notices off the request path.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/clink/internal/domain/model"
	"github.com/okian/clink/pkg/logger"
	"github.com/okian/clink/pkg/metrics"
)

const (
	defaultWorkerCount  = 2
	poolShutdownTimeout = 30 * time.Second
)

// Notifier delivers a single match notice.
type Notifier interface {
	Notify(ctx context.Context, n model.MatchNotice) error
}

// Queue defines how workers receive notices.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.MatchNotice
}

// Worker consumes notices and hands them to a Notifier.
type Worker interface {
	// Run starts the worker loop until ctx is canceled or the queue closes.
	Run(ctx context.Context)

	// Shutdown stops the worker without draining the queue.
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	queue    Queue
	notifier Notifier
	name     string

	shutdown     chan struct{}
	shutdownOnce sync.Once
	done         chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(queue Queue, notifier Notifier, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:    queue,
		notifier: notifier,
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

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	notices := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case n, ok := <-notices:
			if !ok {
				return
			}
			if err := w.deliver(ctx, n); err != nil {
				w.logger.Error(ctx, "notice delivery failed", logger.String("notice_id", n.ID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.shutdownOnce.Do(func() { close(w.shutdown) })

	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} {
	return w.done
}

func (w *InMemoryWorker) deliver(ctx context.Context, n model.MatchNotice) error { //nolint:gocritic // hugeParam: passed by value for channel semantics
	start := time.Now()
	if err := w.notifier.Notify(ctx, n); err != nil {
		metrics.RecordNoticeError()
		metrics.RecordErrorByType("notice_error", "low")
		return err
	}
	metrics.RecordNoticeDelivered(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// Pool manages multiple workers reading from one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	logger  logger.Logger
}

// NewPool creates a worker pool. A non-positive count uses the default of two.
func NewPool(workerCount int, queue Queue, notifier Notifier, opts ...Option) *Pool {
	if workerCount < 1 {
		workerCount = defaultWorkerCount
	}

	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   queue,
		logger:  logger.Get().Named("worker-pool"),
	}
	for i := 0; i < workerCount; i++ {
		workerOpts := append([]Option{WithName("worker-" + strconv.Itoa(i))}, opts...)
		pool.workers[i] = NewInMemoryWorker(queue, notifier, workerOpts...)
	}
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int {
	return len(p.workers)
}

// Start starts all workers in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
	metrics.UpdateWorkerCount(len(p.workers))
}

// Shutdown closes the queue, lets the workers drain it and waits for them.
// Workers still running when ctx expires are stopped without draining.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut bool
	for i, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut = true
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			w.shutdownOnce.Do(func() { close(w.shutdown) })
		}
	}
	metrics.UpdateWorkerCount(0)

	if timedOut {
		return fmt.Errorf("worker pool shutdown: %w", shutdownCtx.Err())
	}
	return nil
}
