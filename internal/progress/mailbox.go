package progress

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Update is one (current, total) pair queued for delivery.
type Update struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// DeliverFunc hands an update to the caller. An error means the caller is no
// longer reachable; the mailbox stops delivering after the first one.
type DeliverFunc func(ctx context.Context, u Update) error

// Mailbox is a Notifier that queues updates without bound and delivers them
// from a single goroutine, so producers never wait on the consumer. Updates
// are delivered in Notify order. Once the caller's context ends, a delivery
// fails, or the mailbox closes, further updates are dropped silently.
type Mailbox struct {
	ctx     context.Context
	deliver DeliverFunc
	logger  *zap.Logger

	mu      sync.Mutex
	pending []Update
	closed  bool

	wake      chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once

	gone      atomic.Bool
	delivered atomic.Int64
	dropped   atomic.Int64
}

// NewMailbox starts the delivery goroutine. ctx is the caller's context.
func NewMailbox(ctx context.Context, deliver DeliverFunc, logger *zap.Logger) *Mailbox {
	if ctx == nil {
		ctx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Mailbox{
		ctx:     ctx,
		deliver: deliver,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	go m.run()
	return m
}

// Notify queues (current, total). It never blocks.
func (m *Mailbox) Notify(current, total int) {
	m.mu.Lock()
	if m.closed || m.gone.Load() {
		m.mu.Unlock()
		m.dropped.Add(1)
		return
	}
	m.pending = append(m.pending, Update{Current: current, Total: total})
	m.mu.Unlock()
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Delivered reports how many updates reached the caller.
func (m *Mailbox) Delivered() int64 {
	return m.delivered.Load()
}

// Dropped reports how many updates were discarded.
func (m *Mailbox) Dropped() int64 {
	return m.dropped.Load()
}

// Done is closed once the delivery goroutine has exited; Dropped is final
// from then on.
func (m *Mailbox) Done() <-chan struct{} {
	return m.doneCh
}

// Close stops accepting updates, delivers what is already queued, and waits
// for the delivery goroutine. Safe to call more than once.
func (m *Mailbox) Close(ctx context.Context) error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.closed = true
		m.mu.Unlock()
		close(m.stopCh)
	})
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-m.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("progress mailbox close wait: %w", ctx.Err())
	}
}

func (m *Mailbox) run() {
	defer close(m.doneCh)
	for {
		select {
		case <-m.wake:
			m.flush()
		case <-m.ctx.Done():
			m.abandon()
			return
		case <-m.stopCh:
			m.flush()
			return
		}
	}
}

func (m *Mailbox) flush() {
	for {
		m.mu.Lock()
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, u := range batch {
			m.send(u)
		}
	}
}

func (m *Mailbox) send(u Update) {
	if m.gone.Load() || m.deliver == nil {
		m.dropped.Add(1)
		return
	}
	if err := m.deliver(m.ctx, u); err != nil {
		m.abandon()
		m.dropped.Add(1)
		m.logger.Debug("progress delivery failed, dropping further updates", zap.Error(err))
		return
	}
	m.delivered.Add(1)
}

func (m *Mailbox) abandon() {
	m.mu.Lock()
	m.gone.Store(true)
	n := len(m.pending)
	m.pending = nil
	m.mu.Unlock()
	m.dropped.Add(int64(n))
}
