package bridge

import (
	"sync"

	"github.com/JakeFAU/docbridge/internal/logstream"
	"github.com/JakeFAU/docbridge/internal/progress"
)

// Interceptor counts progress markers for exactly one job. It only accepts
// events stamped with the tag recorded by Bind; everything else on the shared
// stream is ignored.
type Interceptor struct {
	mu       sync.Mutex
	total    int
	current  int
	owner    logstream.Tag
	bound    bool
	detached bool
	state    State
	notifier progress.Notifier
	sub      *logstream.Subscription

	// outbox holds pairs not yet handed to notifier. Notify runs without mu
	// held: a notifier may log, and logging re-enters owns through the stream.
	outbox  []progress.Update
	sending bool
}

// NewInterceptor builds an unbound interceptor for a job of total ticks.
func NewInterceptor(total int, notifier progress.Notifier) *Interceptor {
	if notifier == nil {
		notifier = progress.Discard
	}
	return &Interceptor{total: total, notifier: notifier, state: StateCreated}
}

// Attach subscribes the interceptor to stream with an owner-equality filter.
func (i *Interceptor) Attach(stream *logstream.Broadcaster) {
	sub := stream.Subscribe(i.owns, i.Observe)
	i.mu.Lock()
	i.sub = sub
	detached := i.detached
	i.mu.Unlock()
	if detached {
		sub.Unsubscribe()
	}
}

// Bind records the owning execution tag. It must run inside the worker that
// executes the job. A repeated call replaces the tag.
func (i *Interceptor) Bind(tag logstream.Tag) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.owner = tag
	i.bound = true
	if i.state == StateCreated {
		i.state = StateBound
	}
}

func (i *Interceptor) owns(evt logstream.Event) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.bound && !i.detached && evt.Tag == i.owner
}

// Observe handles one event from the shared stream. Foreign, unbound, or
// marker-free events change nothing. A marker advances the counter by one,
// clamped to the total, and notifies the new count.
func (i *Interceptor) Observe(evt logstream.Event) {
	if !IsTick(evt.Message) {
		return
	}
	i.mu.Lock()
	if !i.bound || i.detached || evt.Tag != i.owner {
		i.mu.Unlock()
		return
	}
	if i.current < i.total {
		i.current++
	}
	if i.state == StateBound {
		i.state = StateRunning
	}
	i.queueLocked(i.current)
	i.mu.Unlock()
	i.flush()
}

// Start sends the initial (0, total) notification.
func (i *Interceptor) Start() {
	i.mu.Lock()
	i.queueLocked(0)
	i.mu.Unlock()
	i.flush()
}

// Complete marks the job finished and reports (total, total) regardless of
// how many markers were seen.
func (i *Interceptor) Complete() {
	i.mu.Lock()
	i.current = i.total
	i.state = StateCompleted
	i.queueLocked(i.total)
	i.mu.Unlock()
	i.flush()
}

func (i *Interceptor) queueLocked(current int) {
	i.outbox = append(i.outbox, progress.Update{Current: current, Total: i.total})
}

// flush hands queued pairs to the notifier in order. Only one goroutine sends
// at a time; a reentrant or concurrent caller leaves its pair for the active
// sender.
func (i *Interceptor) flush() {
	i.mu.Lock()
	if i.sending {
		i.mu.Unlock()
		return
	}
	i.sending = true
	for len(i.outbox) > 0 {
		u := i.outbox[0]
		i.outbox = i.outbox[1:]
		i.mu.Unlock()
		i.notifier.Notify(u.Current, u.Total)
		i.mu.Lock()
	}
	i.sending = false
	i.mu.Unlock()
}

// Fail marks the job failed without a final notification.
func (i *Interceptor) Fail() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.state = StateFailed
}

// Detach unsubscribes from the stream. Safe to call repeatedly and from any
// goroutine; no notification follows it.
func (i *Interceptor) Detach() {
	i.mu.Lock()
	i.detached = true
	sub := i.sub
	i.mu.Unlock()
	sub.Unsubscribe()
}

// Current returns the tick count.
func (i *Interceptor) Current() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.current
}

// Total returns the tick budget.
func (i *Interceptor) Total() int {
	return i.total
}

// State returns the lifecycle state.
func (i *Interceptor) State() State {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.state
}

// Owner returns the bound tag, or "" before Bind.
func (i *Interceptor) Owner() logstream.Tag {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.owner
}
