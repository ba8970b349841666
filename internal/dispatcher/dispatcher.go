// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/worker"
)

// Queue is the task buffer the pool reads from.
type Queue interface {
	worker.Queue
	Enqueue(ctx context.Context, task worker.Task) error
	Close()
	Drain() []worker.Task
}

// Dispatcher fans out queued tasks to a pool of workers.
type Dispatcher struct {
	queue   Queue
	workers []*worker.Worker
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(queue Queue, workers []*worker.Worker, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		queue:   queue,
		workers: workers,
		logger:  logger,
	}
}

// NewPool builds size workers over queue. Sizes below one become one.
func NewPool(queue Queue, size int, logger *zap.Logger) *Dispatcher {
	if size < 1 {
		size = 1
	}
	workers := make([]*worker.Worker, 0, size)
	for i := 0; i < size; i++ {
		workers = append(workers, worker.New(i+1, queue, logger))
	}
	return New(queue, workers, logger)
}

// Size reports the number of workers.
func (d *Dispatcher) Size() int {
	return len(d.workers)
}

// Run starts all workers and blocks until the context finishes. Tasks still
// buffered at shutdown are abandoned rather than executed.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	<-ctx.Done()
	d.queue.Close()
	wg.Wait()

	pending := d.queue.Drain()
	for _, task := range pending {
		task.Abandon(fmt.Errorf("worker pool stopped: %w", ctx.Err()))
	}
	if len(pending) > 0 {
		d.logger.Warn("abandoned queued tasks at shutdown", zap.Int("count", len(pending)))
	}
}

// Submit proxies to the underlying queue.
func (d *Dispatcher) Submit(ctx context.Context, task worker.Task) error {
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("queue enqueue: %w", err)
	}
	return nil
}
