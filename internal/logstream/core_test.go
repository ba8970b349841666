package logstream

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestCorePublishesBoundLines(t *testing.T) {
	t.Parallel()

	stream := NewBroadcaster()
	rec := &recorder{}
	stream.Subscribe(nil, rec.handle)

	obsCore, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(obsCore, Tee(stream, zapcore.InfoLevel)).Named("converter")

	Bind(logger, "exec-1").Info("(1/2) Parsing Page 1")
	logger.Info("unbound line")
	logger.Debug("below stream level")
	logger.Info("per-call tag", Field("exec-2"))

	events := rec.Events()
	require.Len(t, events, 3)
	require.Equal(t, Tag("exec-1"), events[0].Tag)
	require.Equal(t, "(1/2) Parsing Page 1", events[0].Message)
	require.Equal(t, "converter", events[0].Logger)
	require.Equal(t, Tag(""), events[1].Tag)
	require.Equal(t, Tag("exec-2"), events[2].Tag)

	// the regular output still sees everything, including debug
	require.Equal(t, 4, logs.Len())
}

func TestCoreNestedBindKeepsLatestTag(t *testing.T) {
	t.Parallel()

	stream := NewBroadcaster()
	rec := &recorder{}
	stream.Subscribe(nil, rec.handle)

	logger := zap.New(NewCore(stream, zapcore.InfoLevel))
	Bind(Bind(logger, "outer"), "inner").With(zap.Int("page", 3)).Warn("nested")

	events := rec.Events()
	require.Len(t, events, 1)
	require.Equal(t, Tag("inner"), events[0].Tag)
	require.Equal(t, zapcore.WarnLevel, events[0].Level)
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	require.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	require.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	require.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
}
