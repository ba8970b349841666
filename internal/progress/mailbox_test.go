package progress

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type updateRecorder struct {
	mu      sync.Mutex
	updates []Update
}

func (r *updateRecorder) deliver(_ context.Context, u Update) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, u)
	return nil
}

func (r *updateRecorder) Updates() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Update(nil), r.updates...)
}

func TestMailboxDeliversInOrder(t *testing.T) {
	t.Parallel()

	rec := &updateRecorder{}
	box := NewMailbox(context.Background(), rec.deliver, nil)
	for i := 0; i <= 10; i++ {
		box.Notify(i, 10)
	}
	require.NoError(t, box.Close(context.Background()))

	updates := rec.Updates()
	require.Len(t, updates, 11)
	for i, u := range updates {
		require.Equal(t, Update{Current: i, Total: 10}, u)
	}
	require.Equal(t, int64(11), box.Delivered())
	require.Zero(t, box.Dropped())
}

func TestMailboxNotifyNeverBlocksOnSlowConsumer(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	slow := func(ctx context.Context, _ Update) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	box := NewMailbox(context.Background(), slow, nil)

	start := time.Now()
	for i := 0; i < 1000; i++ {
		box.Notify(i, 1000)
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)

	close(release)
	require.NoError(t, box.Close(context.Background()))
	require.Equal(t, int64(1000), box.Delivered())
}

func TestMailboxDropsAfterDeliveryFailure(t *testing.T) {
	t.Parallel()

	calls := 0
	failing := func(context.Context, Update) error {
		calls++
		return errors.New("broken pipe")
	}
	box := NewMailbox(context.Background(), failing, nil)
	box.Notify(0, 4)
	require.Eventually(t, func() bool { return box.Dropped() == 1 }, time.Second, 5*time.Millisecond)

	box.Notify(1, 4)
	box.Notify(4, 4)
	require.NoError(t, box.Close(context.Background()))
	require.Equal(t, 1, calls)
	require.Equal(t, int64(3), box.Dropped())
	require.Zero(t, box.Delivered())
}

func TestMailboxDropsOnceCallerIsGone(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	rec := &updateRecorder{}
	box := NewMailbox(ctx, rec.deliver, nil)
	box.Notify(0, 2)
	require.Eventually(t, func() bool { return box.Delivered() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	require.Eventually(t, func() bool {
		box.Notify(1, 2)
		return box.Dropped() > 0
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, box.Close(context.Background()))
	require.Equal(t, []Update{{Current: 0, Total: 2}}, rec.Updates()[:1])
}

func TestMailboxDropsAfterClose(t *testing.T) {
	t.Parallel()

	rec := &updateRecorder{}
	box := NewMailbox(context.Background(), rec.deliver, nil)
	require.NoError(t, box.Close(context.Background()))
	require.NoError(t, box.Close(context.Background()))

	box.Notify(1, 2)
	require.Equal(t, int64(1), box.Dropped())
	require.Empty(t, rec.Updates())
}

func TestMultiAndTickEmitter(t *testing.T) {
	t.Parallel()

	var seen []Update
	collect := NotifierFunc(func(c, tot int) { seen = append(seen, Update{Current: c, Total: tot}) })
	emitter := &recordingEmitter{}
	now := func() time.Time { return time.Unix(10, 0) }

	n := Multi(collect, nil, TickEmitter(emitter, "run-9", now), TickEmitter(nil, "ignored", nil))
	n.Notify(2, 6)
	Discard.Notify(1, 1)

	require.Equal(t, []Update{{Current: 2, Total: 6}}, seen)
	require.Len(t, emitter.events, 1)
	require.Equal(t, Event{RunID: "run-9", TS: time.Unix(10, 0).UTC(), Stage: StageRunTick, Current: 2, Total: 6},
		emitter.events[0])
}

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(evt Event) {
	r.events = append(r.events, evt)
}
