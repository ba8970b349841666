package logstream

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Core is a zapcore.Core that publishes entries to a Broadcaster instead of
// encoding them. Tee it next to the regular output core.
type Core struct {
	zapcore.LevelEnabler
	stream *Broadcaster
	tag    Tag
}

// NewCore publishes entries at or above enab to stream.
func NewCore(stream *Broadcaster, enab zapcore.LevelEnabler) *Core {
	return &Core{LevelEnabler: enab, stream: stream}
}

// Tee returns a zap option that adds a stream core alongside the logger's own.
func Tee(stream *Broadcaster, enab zapcore.LevelEnabler) zap.Option {
	return zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, NewCore(stream, enab))
	})
}

// With captures the execution tag when one is among fields; other fields are
// not retained because subscribers only see the rendered message.
func (c *Core) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	if tag, ok := tagFrom(fields); ok {
		clone.tag = tag
	}
	return &clone
}

// Check adds the core when the entry level is enabled.
func (c *Core) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(ent.Level) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write publishes the entry. Per-call fields may also carry a tag.
func (c *Core) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	tag := c.tag
	if t, ok := tagFrom(fields); ok {
		tag = t
	}
	c.stream.Publish(Event{
		Tag:     tag,
		Level:   ent.Level,
		Logger:  ent.LoggerName,
		Message: ent.Message,
		Time:    ent.Time,
	})
	return nil
}

// Sync is a no-op; publishing is synchronous.
func (c *Core) Sync() error {
	return nil
}

func tagFrom(fields []zapcore.Field) (Tag, bool) {
	for i := len(fields) - 1; i >= 0; i-- {
		f := fields[i]
		if f.Key == TagKey && f.Type == zapcore.StringType {
			return Tag(f.String), true
		}
	}
	return "", false
}

// ParseLevel maps a config string to a zap level, defaulting to info.
func ParseLevel(raw string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(raw)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
