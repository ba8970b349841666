// Package dispatcher contains tests for worker coordination.
package dispatcher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/queue/memory"
	"github.com/JakeFAU/docbridge/internal/worker"
)

type recordingTask struct {
	ran       chan int
	block     chan struct{}
	mu        sync.Mutex
	abandoned error
}

func newRecordingTask() *recordingTask {
	return &recordingTask{ran: make(chan int, 1)}
}

func (p *recordingTask) Execute(_ context.Context, workerID int) {
	p.ran <- workerID
	if p.block != nil {
		<-p.block
	}
}

func (p *recordingTask) Abandon(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.abandoned = err
}

func (p *recordingTask) abandonErr() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.abandoned
}

// TestDispatcherRunStartsWorkers ensures workers begin processing and stop on cancel.
func TestDispatcherRunStartsWorkers(t *testing.T) {
	t.Parallel()

	dispatch := NewPool(memory.NewQueue(4), 2, zap.NewNop())
	require.Equal(t, 2, dispatch.Size())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	task := newRecordingTask()
	require.NoError(t, dispatch.Submit(context.Background(), task))

	select {
	case id := <-task.ran:
		require.Contains(t, []int{1, 2}, id)
	case <-time.After(time.Second):
		t.Fatal("worker did not execute task")
	}

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherAbandonsQueuedTasksOnShutdown verifies buffered work is never silently lost.
func TestDispatcherAbandonsQueuedTasksOnShutdown(t *testing.T) {
	t.Parallel()

	dispatch := NewPool(memory.NewQueue(4), 1, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	busy := newRecordingTask()
	busy.block = make(chan struct{})
	require.NoError(t, dispatch.Submit(context.Background(), busy))
	<-busy.ran

	queued := newRecordingTask()
	require.NoError(t, dispatch.Submit(context.Background(), queued))

	cancel()
	close(busy.block)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop")
	}
	require.ErrorIs(t, queued.abandonErr(), context.Canceled)
	require.Empty(t, queued.ran)
}

// TestDispatcherSubmitForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherSubmitForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(&errorQueue{err: errors.New("boom")}, nil, nil)

	err := dispatch.Submit(context.Background(), newRecordingTask())
	require.EqualError(t, err, "queue enqueue: boom")
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, worker.Task) error { return q.err }
func (q *errorQueue) Dequeue(context.Context) (worker.Task, error) {
	return nil, worker.ErrQueueClosed
}
func (q *errorQueue) Close()               {}
func (q *errorQueue) Drain() []worker.Task { return nil }
