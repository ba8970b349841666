package bridge

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/JakeFAU/docbridge/internal/logstream"
	"github.com/JakeFAU/docbridge/internal/progress"
)

type pair struct{ current, total int }

type recorder struct {
	mu    sync.Mutex
	pairs []pair
}

func (r *recorder) Notify(current, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pairs = append(r.pairs, pair{current, total})
}

func (r *recorder) snapshot() []pair {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]pair(nil), r.pairs...)
}

func (r *recorder) distinctCurrents() []int {
	seen := map[int]bool{}
	var out []int
	for _, p := range r.snapshot() {
		if !seen[p.current] {
			seen[p.current] = true
			out = append(out, p.current)
		}
	}
	return out
}

type emitterStub struct {
	mu     sync.Mutex
	events []progress.Event
}

func (e *emitterStub) Emit(evt progress.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *emitterStub) stages() []progress.Stage {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]progress.Stage, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Stage)
	}
	return out
}

func streamLogger(stream *logstream.Broadcaster) *zap.Logger {
	return zap.New(logstream.NewCore(stream, zapcore.DebugLevel))
}

func tagged(tag logstream.Tag, msg string) logstream.Event {
	return logstream.Event{Tag: tag, Level: zapcore.InfoLevel, Message: msg}
}
