package bridge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/clock/system"
	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/logstream"
	"github.com/JakeFAU/docbridge/internal/progress"
	"github.com/JakeFAU/docbridge/internal/worker"
)

// WorkFunc is the blocking routine a job runs. Its only progress signal is the
// lines it writes to logger.
type WorkFunc func(ctx context.Context, logger *zap.Logger) error

// Spec describes one job handed to Run.
type Spec struct {
	// JobID doubles as the run ID on hub events. Generated when empty.
	JobID string
	// Units is the number of pages to convert. Must be positive.
	Units     int
	InputRef  string
	OutputRef string
	Work      WorkFunc
}

// Outcome is the result of a Run.
type Outcome struct {
	JobID      string
	State      State
	Units      int
	TotalTicks int
	// Ticks is the counter value when the interceptor detached.
	Ticks    int
	Duration time.Duration
	// Err is nil on success. Message is its human-readable form and Raw the
	// full error string.
	Err     error
	Message string
	Raw     string
}

// Succeeded reports whether the job completed.
func (o Outcome) Succeeded() bool {
	return o.State == StateCompleted && o.Err == nil
}

// Submitter accepts tasks for the worker pool.
type Submitter interface {
	Submit(ctx context.Context, task worker.Task) error
}

// Config wires a Dispatcher.
type Config struct {
	// Stream carries every log line written through Logger.
	Stream *logstream.Broadcaster
	Pool   Submitter
	IDs    conversion.IDGenerator
	Clock  conversion.Clock
	// Emitter receives run lifecycle events. Optional.
	Emitter progress.Emitter
	// Logger must publish to Stream, typically via logstream.Tee.
	Logger *zap.Logger
}

// Dispatcher runs jobs on the worker pool and reports their progress.
type Dispatcher struct {
	stream  *logstream.Broadcaster
	pool    Submitter
	ids     conversion.IDGenerator
	clock   conversion.Clock
	emitter progress.Emitter
	logger  *zap.Logger
	seq     atomic.Uint64
}

// NewDispatcher validates cfg and builds a Dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Stream == nil {
		return nil, errors.New("bridge: log stream is required")
	}
	if cfg.Pool == nil {
		return nil, errors.New("bridge: worker pool is required")
	}
	if cfg.Clock == nil {
		cfg.Clock = system.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		stream:  cfg.Stream,
		pool:    cfg.Pool,
		ids:     cfg.IDs,
		clock:   cfg.Clock,
		emitter: cfg.Emitter,
		logger:  cfg.Logger,
	}, nil
}

// Run executes spec on a worker and blocks until it finishes or ctx ends.
// notifier receives (0, total) before the job is queued, one pair per marker
// line the job logs, and (total, total) on success. It may be nil.
//
// Failures never escape as panics; they come back as a failed Outcome. When
// ctx ends first Run returns immediately and the worker still finishes and
// detaches on its own.
func (d *Dispatcher) Run(ctx context.Context, spec Spec, notifier progress.Notifier) Outcome {
	if spec.JobID == "" {
		spec.JobID = d.newID()
	}
	if spec.Units <= 0 {
		return failed(spec, 0, 0, conversion.InvalidArgument(
			fmt.Sprintf("unit count must be positive, got %d", spec.Units), nil))
	}
	if spec.Work == nil {
		return failed(spec, 0, 0, conversion.InvalidArgument("no work supplied", nil))
	}

	total := TotalTicks(spec.Units)
	icpt := NewInterceptor(total, progress.Multi(
		notifier,
		progress.TickEmitter(d.emitter, spec.JobID, d.clock.Now),
	))
	icpt.Attach(d.stream)
	d.emit(progress.Event{
		RunID:     spec.JobID,
		Stage:     progress.StageRunStart,
		InputRef:  spec.InputRef,
		OutputRef: spec.OutputRef,
		Units:     spec.Units,
		Total:     total,
	})
	icpt.Start()

	t := &task{
		d:      d,
		caller: ctx,
		spec:   spec,
		icpt:   icpt,
		result: make(chan Outcome, 1),
	}
	if err := d.pool.Submit(ctx, t); err != nil {
		t.Abandon(err)
	}

	select {
	case out := <-t.result:
		return out
	case <-ctx.Done():
		d.logger.Debug("caller left before job finished", zap.String("job_id", spec.JobID))
		return failed(spec, total, icpt.Current(), fmt.Errorf("wait for job: %w", ctx.Err()))
	}
}

func (d *Dispatcher) newID() string {
	if d.ids != nil {
		if id, err := d.ids.NewID(); err == nil {
			return id
		}
	}
	return "job-" + strconv.FormatUint(d.seq.Add(1), 10)
}

// mintTag is called from the worker goroutine; the tag is unique per execution.
func (d *Dispatcher) mintTag(workerID int) logstream.Tag {
	return logstream.Tag(fmt.Sprintf("w%d/%s", workerID, d.newID()))
}

func (d *Dispatcher) emit(evt progress.Event) {
	if d.emitter == nil {
		return
	}
	evt.TS = d.clock.Now().UTC()
	d.emitter.Emit(evt)
}

type task struct {
	d      *Dispatcher
	caller context.Context
	spec   Spec
	icpt   *Interceptor
	result chan Outcome
	done   atomic.Bool
}

// Execute runs on the worker goroutine. The interceptor is bound here, and
// detached before the outcome is handed back.
func (t *task) Execute(_ context.Context, workerID int) {
	defer t.icpt.Detach()
	if err := t.caller.Err(); err != nil {
		t.Abandon(fmt.Errorf("caller gone before start: %w", err))
		return
	}

	tag := t.d.mintTag(workerID)
	t.icpt.Bind(tag)
	logger := logstream.Bind(t.d.logger, tag).With(zap.String("job_id", t.spec.JobID))

	start := t.d.clock.Now()
	err := t.call(context.WithoutCancel(t.caller), logger)
	dur := t.d.clock.Now().Sub(start)
	if dur < 0 {
		dur = 0
	}

	if err != nil {
		t.icpt.Fail()
		t.icpt.Detach()
		out := failed(t.spec, t.icpt.Total(), t.icpt.Current(), err)
		out.Duration = dur
		t.d.logger.Warn("job failed",
			zap.String("job_id", t.spec.JobID),
			zap.Duration("duration", dur),
			zap.Error(err),
		)
		t.finish(out)
		return
	}

	t.icpt.Complete()
	t.icpt.Detach()
	t.d.logger.Info("job completed",
		zap.String("job_id", t.spec.JobID),
		zap.Int("units", t.spec.Units),
		zap.Duration("duration", dur),
	)
	t.finish(Outcome{
		JobID:      t.spec.JobID,
		State:      StateCompleted,
		Units:      t.spec.Units,
		TotalTicks: t.icpt.Total(),
		Ticks:      t.icpt.Current(),
		Duration:   dur,
	})
}

// Abandon detaches without running the work.
func (t *task) Abandon(err error) {
	t.icpt.Fail()
	t.icpt.Detach()
	t.finish(failed(t.spec, t.icpt.Total(), t.icpt.Current(), conversion.ConversionFailure(err)))
}

func (t *task) call(ctx context.Context, logger *zap.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = conversion.ConversionFailure(fmt.Errorf("panic: %v", r))
		}
	}()
	if err := t.spec.Work(ctx, logger); err != nil {
		var classified *conversion.Error
		if errors.As(err, &classified) {
			return err
		}
		return conversion.ConversionFailure(err)
	}
	return nil
}

func (t *task) finish(out Outcome) {
	if !t.done.CompareAndSwap(false, true) {
		return
	}
	stage := progress.StageRunDone
	if !out.Succeeded() {
		stage = progress.StageRunError
	}
	t.d.emit(progress.Event{
		RunID:   out.JobID,
		Stage:   stage,
		Units:   out.Units,
		Current: out.Ticks,
		Total:   out.TotalTicks,
		Dur:     out.Duration,
		Note:    out.Message,
	})
	t.result <- out
}

func failed(spec Spec, total, ticks int, err error) Outcome {
	return Outcome{
		JobID:      spec.JobID,
		State:      StateFailed,
		Units:      spec.Units,
		TotalTicks: total,
		Ticks:      ticks,
		Err:        err,
		Message:    conversion.MessageOf(err),
		Raw:        err.Error(),
	}
}
