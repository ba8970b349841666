package progress

import "time"

// Notifier receives (current, total) progress pairs. Implementations must
// return promptly; callers invoke Notify from worker goroutines.
type Notifier interface {
	Notify(current, total int)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(current, total int)

// Notify calls f.
func (f NotifierFunc) Notify(current, total int) {
	f(current, total)
}

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(int, int) {})

// Multi fans each notification out to every non-nil notifier in order.
func Multi(notifiers ...Notifier) Notifier {
	out := make(multi, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

type multi []Notifier

func (m multi) Notify(current, total int) {
	for _, n := range m {
		n.Notify(current, total)
	}
}

// TickEmitter converts notifications into RUN_TICK events on emitter. A nil
// emitter yields Discard.
func TickEmitter(emitter Emitter, runID string, now func() time.Time) Notifier {
	if emitter == nil {
		return Discard
	}
	if now == nil {
		now = time.Now
	}
	return NotifierFunc(func(current, total int) {
		emitter.Emit(Event{
			RunID:   runID,
			TS:      now().UTC(),
			Stage:   StageRunTick,
			Current: current,
			Total:   total,
		})
	})
}
