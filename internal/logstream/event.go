package logstream

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TagKey is the zap field key that carries an execution Tag.
const TagKey = "exec_tag"

// Tag identifies the worker execution that produced a log line. The zero
// value means the line was written outside any bound execution.
type Tag string

// Event is a single published log line.
type Event struct {
	Tag     Tag
	Level   zapcore.Level
	Logger  string
	Message string
	Time    time.Time
}

// Field returns the zap field that stamps lines with tag.
func Field(tag Tag) zap.Field {
	return zap.String(TagKey, string(tag))
}

// Bind returns a child logger whose lines are attributed to tag.
func Bind(logger *zap.Logger, tag Tag) *zap.Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return logger.With(Field(tag))
}
