package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/dispatcher"
	"github.com/JakeFAU/docbridge/internal/logstream"
	"github.com/JakeFAU/docbridge/internal/progress"
	"github.com/JakeFAU/docbridge/internal/queue/memory"
)

type fixture struct {
	stream  *logstream.Broadcaster
	logger  *zap.Logger
	emitter *emitterStub
	bridge  *Dispatcher
}

func newFixture(t *testing.T, workers int) *fixture {
	t.Helper()

	stream := logstream.NewBroadcaster()
	logger := streamLogger(stream)
	emitter := &emitterStub{}
	d, err := NewDispatcher(Config{
		Stream:  stream,
		Pool:    startPool(t, workers),
		Emitter: emitter,
		Logger:  logger,
	})
	require.NoError(t, err)
	return &fixture{stream: stream, logger: logger, emitter: emitter, bridge: d}
}

func startPool(t *testing.T, workers int) *dispatcher.Dispatcher {
	t.Helper()

	pool := dispatcher.NewPool(memory.NewQueue(16), workers, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		pool.Run(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return pool
}

// pages logs the two passes a converter makes over n pages.
func pages(n int) WorkFunc {
	return func(_ context.Context, logger *zap.Logger) error {
		logger.Info("Start to convert")
		for i := 1; i <= n; i++ {
			logger.Info(fmt.Sprintf("(%d/%d) Parsing Page %d", i, n, i))
		}
		for i := 1; i <= n; i++ {
			logger.Info(fmt.Sprintf("(%d/%d) Creating Page %d", i, n, i))
		}
		logger.Info("Terminated")
		return nil
	}
}

func TestNewDispatcherRequiresStreamAndPool(t *testing.T) {
	t.Parallel()

	_, err := NewDispatcher(Config{})
	require.Error(t, err)
	_, err = NewDispatcher(Config{Stream: logstream.NewBroadcaster()})
	require.Error(t, err)
}

func TestRunReportsEveryTick(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	rec := &recorder{}

	out := f.bridge.Run(context.Background(), Spec{JobID: "job-1", Units: 3, Work: pages(3)}, rec)

	require.True(t, out.Succeeded(), out.Raw)
	require.Equal(t, 6, out.TotalTicks)
	require.Equal(t, 6, out.Ticks)
	got := rec.snapshot()
	require.Equal(t, pair{0, 6}, got[0])
	require.Equal(t, pair{6, 6}, got[len(got)-1])
	for i := 1; i < len(got); i++ {
		require.GreaterOrEqual(t, got[i].current, got[i-1].current)
	}
	require.Equal(t, 0, f.stream.Len())
}

func TestRunWithoutMarkersSendsStartAndFinish(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	rec := &recorder{}
	quiet := func(_ context.Context, logger *zap.Logger) error {
		logger.Info("working without counters")
		return nil
	}

	out := f.bridge.Run(context.Background(), Spec{Units: 2, Work: quiet}, rec)

	require.True(t, out.Succeeded())
	require.Equal(t, []pair{{0, 4}, {4, 4}}, rec.snapshot())
	require.NotEmpty(t, out.JobID)
}

func TestRunClampsExtraMarkers(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	rec := &recorder{}
	chatty := func(_ context.Context, logger *zap.Logger) error {
		for i := 0; i < 9; i++ {
			logger.Info("(1/1) Parsing Page 1")
		}
		return nil
	}

	out := f.bridge.Run(context.Background(), Spec{Units: 1, Work: chatty}, rec)

	require.True(t, out.Succeeded())
	for _, p := range rec.snapshot() {
		require.LessOrEqual(t, p.current, 2)
		require.Equal(t, 2, p.total)
	}
	require.Equal(t, []int{0, 1, 2}, rec.distinctCurrents())
}

func TestConcurrentRunsAreIsolated(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 2)
	var ready sync.WaitGroup
	ready.Add(2)
	interleaved := func(n int) WorkFunc {
		inner := pages(n)
		return func(ctx context.Context, logger *zap.Logger) error {
			ready.Done()
			ready.Wait()
			return inner(ctx, logger)
		}
	}

	noise := make(chan struct{})
	go func() {
		defer close(noise)
		intruder := logstream.Bind(f.logger, "intruder")
		for i := 0; i < 50; i++ {
			intruder.Info("(1/1) Parsing Page 1")
			f.logger.Info("(1/1) Creating Page 1")
		}
	}()

	recA, recB := &recorder{}, &recorder{}
	var wg sync.WaitGroup
	var outA, outB Outcome
	wg.Add(2)
	go func() {
		defer wg.Done()
		outA = f.bridge.Run(context.Background(), Spec{JobID: "A", Units: 3, Work: interleaved(3)}, recA)
	}()
	go func() {
		defer wg.Done()
		outB = f.bridge.Run(context.Background(), Spec{JobID: "B", Units: 5, Work: interleaved(5)}, recB)
	}()
	wg.Wait()
	<-noise

	require.True(t, outA.Succeeded())
	require.True(t, outB.Succeeded())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6}, recA.distinctCurrents())
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, recB.distinctCurrents())
	for _, p := range recA.snapshot() {
		require.Equal(t, 6, p.total)
	}
	for _, p := range recB.snapshot() {
		require.Equal(t, 10, p.total)
	}
	require.Equal(t, 0, f.stream.Len())
}

func TestRunDetachesAfterSuccessAndFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	var leaked *zap.Logger
	capture := func(fail bool) WorkFunc {
		return func(_ context.Context, logger *zap.Logger) error {
			leaked = logger
			logger.Info("(1/1) Parsing Page 1")
			if fail {
				return errors.New("corrupt xref table")
			}
			return nil
		}
	}

	for _, fail := range []bool{false, true} {
		rec := &recorder{}
		out := f.bridge.Run(context.Background(), Spec{Units: 1, Work: capture(fail)}, rec)
		require.Equal(t, !fail, out.Succeeded())
		require.Equal(t, 0, f.stream.Len())

		before := len(rec.snapshot())
		leaked.Info("(1/1) Creating Page 1")
		require.Len(t, rec.snapshot(), before, "no notification after detach")
	}
}

func TestRunFailureBecomesOutcome(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	rec := &recorder{}
	broken := func(_ context.Context, logger *zap.Logger) error {
		logger.Info("(1/2) Parsing Page 1")
		return errors.New("unsupported image filter")
	}

	out := f.bridge.Run(context.Background(), Spec{JobID: "bad", Units: 2, Work: broken}, rec)

	require.False(t, out.Succeeded())
	require.Equal(t, StateFailed, out.State)
	require.Equal(t, conversion.KindConversionFailure, conversion.KindOf(out.Err))
	require.Equal(t, "conversion failed", out.Message)
	require.Contains(t, out.Raw, "unsupported image filter")
	require.Equal(t, []pair{{0, 4}, {1, 4}}, rec.snapshot())
	require.Equal(t, []progress.Stage{
		progress.StageRunStart,
		progress.StageRunTick,
		progress.StageRunTick,
		progress.StageRunError,
	}, f.emitter.stages())
}

func TestRunRecoversPanics(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	explode := func(context.Context, *zap.Logger) error {
		panic("nil page tree")
	}

	out := f.bridge.Run(context.Background(), Spec{Units: 1, Work: explode}, nil)

	require.Equal(t, StateFailed, out.State)
	require.Equal(t, conversion.KindConversionFailure, conversion.KindOf(out.Err))
	require.Contains(t, out.Raw, "nil page tree")
	require.Equal(t, 0, f.stream.Len())

	again := f.bridge.Run(context.Background(), Spec{Units: 1, Work: pages(1)}, nil)
	require.True(t, again.Succeeded(), "pool keeps serving after a panic")
}

func TestRunRejectsZeroUnits(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	rec := &recorder{}
	called := false
	out := f.bridge.Run(context.Background(), Spec{Units: 0, Work: func(context.Context, *zap.Logger) error {
		called = true
		return nil
	}}, rec)

	require.Equal(t, conversion.KindInvalidArgument, conversion.KindOf(out.Err))
	require.False(t, called)
	require.Empty(t, rec.snapshot())
	require.Empty(t, f.emitter.stages())
	require.Equal(t, 0, f.stream.Len())
}

func TestRunEmitsLifecycleEvents(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	out := f.bridge.Run(context.Background(), Spec{
		JobID:     "run-7",
		Units:     1,
		InputRef:  "/in.pdf",
		OutputRef: "/out.docx",
		Work:      pages(1),
	}, nil)
	require.True(t, out.Succeeded())

	f.emitter.mu.Lock()
	events := append([]progress.Event(nil), f.emitter.events...)
	f.emitter.mu.Unlock()

	require.Equal(t, progress.StageRunStart, events[0].Stage)
	require.Equal(t, "/in.pdf", events[0].InputRef)
	last := events[len(events)-1]
	require.Equal(t, progress.StageRunDone, last.Stage)
	require.Equal(t, 2, last.Current)
	require.Equal(t, 2, last.Total)
	for _, evt := range events {
		require.Equal(t, "run-7", evt.RunID)
		require.NoError(t, evt.Validate())
	}
}

func TestQueuedJobIsSkippedWhenCallerLeaves(t *testing.T) {
	t.Parallel()

	f := newFixture(t, 1)
	release := make(chan struct{})
	blocking := func(context.Context, *zap.Logger) error {
		<-release
		return nil
	}
	firstDone := make(chan Outcome, 1)
	go func() {
		firstDone <- f.bridge.Run(context.Background(), Spec{Units: 1, Work: blocking}, nil)
	}()
	require.Eventually(t, func() bool { return f.stream.Len() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	var ran bool
	var mu sync.Mutex
	secondDone := make(chan Outcome, 1)
	go func() {
		secondDone <- f.bridge.Run(ctx, Spec{Units: 1, Work: func(context.Context, *zap.Logger) error {
			mu.Lock()
			ran = true
			mu.Unlock()
			return nil
		}}, nil)
	}()
	require.Eventually(t, func() bool { return f.stream.Len() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	second := <-secondDone
	require.ErrorIs(t, second.Err, context.Canceled)

	close(release)
	require.True(t, (<-firstDone).Succeeded())
	require.Eventually(t, func() bool { return f.stream.Len() == 0 }, time.Second, 5*time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.False(t, ran)
}

func TestRunSurvivesSaturatedHubLoggingToTheStream(t *testing.T) {
	t.Parallel()

	stream := logstream.NewBroadcaster()
	logger := streamLogger(stream)
	gate := make(chan struct{})
	hub := progress.NewHub(progress.Config{
		BufferSize:     1,
		MaxBatchEvents: 1,
		SinkTimeout:    time.Minute,
		Logger:         logger.Named("progress_hub"),
	}, blockingSink{gate: gate})
	t.Cleanup(func() { require.NoError(t, hub.Close(context.Background())) })
	t.Cleanup(func() { close(gate) })

	d, err := NewDispatcher(Config{
		Stream:  stream,
		Pool:    startPool(t, 2),
		Emitter: hub,
		Logger:  logger,
	})
	require.NoError(t, err)

	rec := &recorder{}
	done := make(chan Outcome, 1)
	go func() {
		done <- d.Run(context.Background(), Spec{Units: 10, Work: pages(10)}, rec)
	}()

	select {
	case out := <-done:
		require.True(t, out.Succeeded(), out.Raw)
		require.Equal(t, 20, out.Ticks)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "run did not finish while the hub was saturated")
	}
	got := rec.snapshot()
	require.Equal(t, pair{20, 20}, got[len(got)-1])
	require.Positive(t, hub.Dropped())
	require.Zero(t, stream.Len())
}

type blockingSink struct{ gate chan struct{} }

func (s blockingSink) Consume(ctx context.Context, _ []progress.Event) error {
	select {
	case <-s.gate:
	case <-ctx.Done():
	}
	return nil
}

func (blockingSink) Close(context.Context) error { return nil }
