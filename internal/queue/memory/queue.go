// Package memory provides the in-process task queue feeding the worker pool.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/docbridge/internal/worker"
)

// Queue is a bounded in-memory queue with context-aware operations.
type Queue struct {
	ch      chan worker.Task
	done    chan struct{}
	closeMu sync.RWMutex
	closed  bool
	once    sync.Once
}

// NewQueue constructs a new queue with the provided capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	return &Queue{
		ch:   make(chan worker.Task, capacity),
		done: make(chan struct{}),
	}
}

// Enqueue pushes a task into the queue or returns if the context ends or the
// queue closes.
func (q *Queue) Enqueue(ctx context.Context, task worker.Task) error {
	q.closeMu.RLock()
	defer q.closeMu.RUnlock()
	if q.closed {
		return worker.ErrQueueClosed
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("enqueue canceled: %w", ctx.Err())
	case <-q.done:
		return worker.ErrQueueClosed
	case q.ch <- task:
		return nil
	}
}

// Dequeue pops the next task, respecting context cancellation.
func (q *Queue) Dequeue(ctx context.Context) (worker.Task, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("dequeue canceled: %w", ctx.Err())
	case task, ok := <-q.ch:
		if !ok {
			return nil, worker.ErrQueueClosed
		}
		return task, nil
	}
}

// Close stops accepting tasks. Buffered tasks stay available to Dequeue and
// Drain. Safe to call more than once.
func (q *Queue) Close() {
	q.once.Do(func() { close(q.done) })
	q.closeMu.Lock()
	defer q.closeMu.Unlock()
	if q.closed {
		return
	}
	close(q.ch)
	q.closed = true
}

// Drain removes and returns every buffered task. Call after Close.
func (q *Queue) Drain() []worker.Task {
	var out []worker.Task
	for {
		select {
		case task, ok := <-q.ch:
			if !ok {
				return out
			}
			out = append(out, task)
		default:
			return out
		}
	}
}

// Len reports the number of buffered tasks.
func (q *Queue) Len() int {
	return len(q.ch)
}
