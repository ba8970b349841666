// Package worker implements the task execution loop shared by the pool.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/metrics"
)

// ErrQueueClosed is returned by a Queue once it has been shut down.
var ErrQueueClosed = errors.New("queue closed")

// Task is one unit of work handed to a worker goroutine.
type Task interface {
	// Execute runs on the worker goroutine identified by workerID.
	Execute(ctx context.Context, workerID int)
	// Abandon is called instead of Execute when the pool shuts down first.
	Abandon(err error)
}

// Queue yields tasks to workers.
type Queue interface {
	Dequeue(ctx context.Context) (Task, error)
}

// Worker consumes queue items and executes them one at a time.
type Worker struct {
	id     int
	queue  Queue
	logger *zap.Logger
}

// New constructs a Worker.
func New(id int, queue Queue, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		id:     id,
		queue:  queue,
		logger: logger.With(zap.Int("worker_id", id)),
	}
}

// ID returns the worker's pool index.
func (w *Worker) ID() int {
	return w.id
}

// Run blocks, consuming tasks until the context finishes or the queue closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		if ctx.Err() != nil {
			task.Abandon(fmt.Errorf("worker stopped: %w", ctx.Err()))
			return
		}
		w.execute(ctx, task)
	}
}

func (w *Worker) execute(ctx context.Context, task Task) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("task panicked", zap.Any("panic", r))
		}
	}()
	task.Execute(ctx, w.id)
}
