package sinks

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/JakeFAU/docbridge/internal/conversion"
	"github.com/JakeFAU/docbridge/internal/progress"
	"github.com/JakeFAU/docbridge/internal/store"
)

// StoreSink persists run lifecycle events via a store.RunRepository. Ticks
// for the same run inside one batch collapse into a single write.
type StoreSink struct {
	repo   store.RunRepository
	logger *zap.Logger
}

// NewStoreSink constructs a StoreSink for the provided repository.
func NewStoreSink(repo store.RunRepository, logger *zap.Logger) *StoreSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StoreSink{repo: repo, logger: logger}
}

type tickDelta struct {
	current int
	total   int
}

// Consume forwards the batch to the repository. It respects ctx deadlines and
// returns the first repository error.
func (s *StoreSink) Consume(ctx context.Context, batch []progress.Event) error {
	if s == nil || s.repo == nil {
		return nil
	}
	pending := make(map[string]tickDelta)

	for _, evt := range batch {
		switch evt.Stage {
		case progress.StageRunStart:
			run := store.Run{
				ID:         evt.RunID,
				InputRef:   evt.InputRef,
				OutputRef:  evt.OutputRef,
				Units:      evt.Units,
				TotalTicks: evt.Total,
				StartedAt:  evt.TS,
			}
			if err := s.repo.StartRun(ctx, run); err != nil {
				return fmt.Errorf("start run: %w", err)
			}
		case progress.StageRunTick:
			if d, ok := pending[evt.RunID]; !ok || evt.Current >= d.current {
				pending[evt.RunID] = tickDelta{current: evt.Current, total: evt.Total}
			}
		case progress.StageRunDone, progress.StageRunError:
			if err := s.flushTicks(ctx, pending, evt.RunID); err != nil {
				return err
			}
			if err := s.complete(ctx, evt); err != nil {
				return err
			}
		}
	}

	ids := make([]string, 0, len(pending))
	for id := range pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if err := s.flushTicks(ctx, pending, id); err != nil {
			return err
		}
	}
	return nil
}

func (s *StoreSink) flushTicks(ctx context.Context, pending map[string]tickDelta, runID string) error {
	d, ok := pending[runID]
	if !ok {
		return nil
	}
	delete(pending, runID)
	if err := s.repo.UpdateTicks(ctx, runID, d.current, d.total); err != nil {
		return fmt.Errorf("update ticks: %w", err)
	}
	return nil
}

func (s *StoreSink) complete(ctx context.Context, evt progress.Event) error {
	status := conversion.RunSucceeded
	var note *string
	if evt.Stage == progress.StageRunError {
		status = conversion.RunFailed
		if evt.Note != "" {
			msg := evt.Note
			note = &msg
		}
	}
	err := s.repo.CompleteRun(ctx, evt.RunID, evt.TS, status, evt.Current, note)
	if err == nil {
		return nil
	}
	// Runs rejected before dispatch never get a start event.
	if err == store.ErrNotFound {
		s.logger.Debug("completion for unknown run", zap.String("run_id", evt.RunID))
		return nil
	}
	return fmt.Errorf("complete run: %w", err)
}

// Close implements the Sink interface; it performs no action.
func (s *StoreSink) Close(context.Context) error {
	return nil
}
