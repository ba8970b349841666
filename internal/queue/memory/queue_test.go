package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/docbridge/internal/worker"
)

type namedTask struct{ name string }

func (namedTask) Execute(context.Context, int) {}
func (namedTask) Abandon(error)                {}

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	result := make(chan worker.Task, 1)
	errCh := make(chan error, 1)

	go func() {
		task, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- task
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to start
	if err := q.Enqueue(context.Background(), namedTask{name: "job-1"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.(namedTask).name != "job-1" {
			t.Fatalf("expected job-1, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return task")
	}
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	qDequeue := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := qDequeue.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}

	qEnqueue := NewQueue(1)
	if err := qEnqueue.Enqueue(context.Background(), namedTask{name: "primed"}); err != nil {
		t.Fatalf("failed to prime enqueue queue: %v", err)
	}
	ctx, cancel = context.WithCancel(context.Background())
	cancel()
	if err := qEnqueue.Enqueue(ctx, namedTask{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	if _, err := q.Dequeue(context.Background()); !errors.Is(err, worker.ErrQueueClosed) {
		t.Fatalf("expected queue closed error, got %v", err)
	}
	if err := q.Enqueue(context.Background(), namedTask{}); !errors.Is(err, worker.ErrQueueClosed) {
		t.Fatalf("expected enqueue after close to fail, got %v", err)
	}
	// Closing twice should be safe.
	q.Close()
}

func TestQueueCloseReleasesBlockedEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	errCh := make(chan error, 1)
	go func() {
		errCh <- q.Enqueue(context.Background(), namedTask{})
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-errCh:
		if !errors.Is(err, worker.ErrQueueClosed) {
			t.Fatalf("expected queue closed error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked enqueue was not released by Close")
	}
}

func TestQueueDrainReturnsBufferedTasks(t *testing.T) {
	t.Parallel()

	q := NewQueue(3)
	for _, name := range []string{"a", "b"} {
		if err := q.Enqueue(context.Background(), namedTask{name: name}); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", name, err)
		}
	}
	if q.Len() != 2 {
		t.Fatalf("expected 2 buffered tasks, got %d", q.Len())
	}
	q.Close()

	drained := q.Drain()
	if len(drained) != 2 || drained[0].(namedTask).name != "a" || drained[1].(namedTask).name != "b" {
		t.Fatalf("unexpected drain result %+v", drained)
	}
	if len(q.Drain()) != 0 {
		t.Fatal("second drain should be empty")
	}
}
