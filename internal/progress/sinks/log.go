package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/progress"
)

// LogSink emits structured logs for run lifecycle events. Ticks are logged at
// debug level so a busy service does not drown its own output.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event in the batch using structured fields.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		fields := []zap.Field{
			zap.String("run_id", evt.RunID),
			zap.String("stage", string(evt.Stage)),
			zap.Int("current", evt.Current),
			zap.Int("total", evt.Total),
		}
		switch evt.Stage {
		case progress.StageRunTick:
			s.logger.Debug("run progress", fields...)
		case progress.StageRunStart:
			fields = append(fields,
				zap.String("input_ref", evt.InputRef),
				zap.String("output_ref", evt.OutputRef),
				zap.Int("units", evt.Units),
			)
			s.logger.Info("run started", fields...)
		case progress.StageRunDone:
			s.logger.Info("run finished", append(fields, zap.Duration("dur", evt.Dur))...)
		case progress.StageRunError:
			s.logger.Warn("run failed", append(fields, zap.Duration("dur", evt.Dur), zap.String("note", evt.Note))...)
		}
	}
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
