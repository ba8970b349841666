package logstream

import (
	"sync"
	"sync/atomic"
)

// Filter decides whether a subscriber receives an event.
type Filter func(Event) bool

// Handler consumes events accepted by a subscriber's filter. Handlers run on
// the publishing goroutine and must not block.
type Handler func(Event)

// Broadcaster fans published events out to registered subscribers. Publish,
// Subscribe, and Unsubscribe are safe for concurrent use; publishing works on
// a snapshot so registration never waits on delivery.
type Broadcaster struct {
	mu     sync.RWMutex
	subs   map[uint64]*Subscription
	nextID atomic.Uint64
}

// NewBroadcaster returns an empty Broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[uint64]*Subscription)}
}

// Subscription is a registered filter/handler pair.
type Subscription struct {
	id      uint64
	b       *Broadcaster
	filter  Filter
	handler Handler
	active  atomic.Bool
	once    sync.Once
}

// Subscribe registers handler for events accepted by filter. A nil filter
// accepts every event.
func (b *Broadcaster) Subscribe(filter Filter, handler Handler) *Subscription {
	sub := &Subscription{
		id:      b.nextID.Add(1),
		b:       b,
		filter:  filter,
		handler: handler,
	}
	sub.active.Store(true)
	b.mu.Lock()
	b.subs[sub.id] = sub
	b.mu.Unlock()
	return sub
}

// Publish delivers evt to every active subscriber whose filter accepts it.
func (b *Broadcaster) Publish(evt Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	snapshot := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.RUnlock()

	for _, sub := range snapshot {
		sub.deliver(evt)
	}
}

// Len reports the number of registered subscribers.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Count reports how many registered subscribers accept evt.
func (b *Broadcaster) Count(evt Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, sub := range b.subs {
		if sub.filter == nil || sub.filter(evt) {
			n++
		}
	}
	return n
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	delete(b.subs, id)
	b.mu.Unlock()
}

func (s *Subscription) deliver(evt Event) {
	if !s.active.Load() {
		return
	}
	if s.filter != nil && !s.filter(evt) {
		return
	}
	if s.handler != nil {
		s.handler(evt)
	}
}

// Unsubscribe removes the subscription. It is idempotent and never affects
// other subscriptions. Once it returns, no further events reach the handler
// from publishes that start afterwards.
func (s *Subscription) Unsubscribe() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.active.Store(false)
		s.b.remove(s.id)
	})
}

// Active reports whether the subscription is still registered.
func (s *Subscription) Active() bool {
	return s != nil && s.active.Load()
}
