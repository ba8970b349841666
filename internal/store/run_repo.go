// Package store declares interfaces for persisting conversion runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/JakeFAU/docbridge/internal/conversion"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("run record not found")

// Run models one row of the conversion_runs table.
type Run struct {
	ID        string
	InputRef  string
	OutputRef string
	Status    conversion.RunStatus
	// Units is the number of pages the run converts.
	Units int
	// CurrentTicks and TotalTicks mirror the last progress notification.
	CurrentTicks int
	TotalTicks   int
	StartedAt    time.Time
	// FinishedAt is nil while the run is in flight.
	FinishedAt *time.Time
	// ErrorMessage optionally stores the final failure reason.
	ErrorMessage *string
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	// Status is optional.
	Status *conversion.RunStatus
	Limit  int
	Offset int
}

// RunRepository persists conversion run progress.
type RunRepository interface {
	// StartRun inserts a running record. Repeating it for the same ID is a no-op.
	StartRun(ctx context.Context, run Run) error
	// UpdateTicks records the latest counter; it never moves the counter backwards.
	UpdateTicks(ctx context.Context, id string, current, total int) error
	// CompleteRun marks the run finished with the provided status and error.
	CompleteRun(
		ctx context.Context,
		id string,
		finishedAt time.Time,
		status conversion.RunStatus,
		ticks int,
		errMsg *string,
	) error
	// GetRun loads a single run or returns ErrNotFound.
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns runs newest first.
	ListRuns(ctx context.Context, filter RunFilter) ([]Run, error)
}
