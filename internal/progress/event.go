package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart Stage = "RUN_START"
	StageRunTick  Stage = "RUN_TICK"
	StageRunDone  Stage = "RUN_DONE"
	StageRunError Stage = "RUN_ERROR"
)

// Event captures one milestone of a conversion run.
type Event struct {
	// RunID identifies the conversion run.
	RunID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which lifecycle milestone occurred.
	Stage Stage
	// InputRef and OutputRef are set on RUN_START.
	InputRef  string
	OutputRef string
	// Units is the number of pages the run converts.
	Units int
	// Current and Total carry the tick counter for RUN_TICK and terminal stages.
	Current int
	Total   int
	// Dur is the conversion wall time on terminal stages.
	Dur time.Duration
	// Note carries the failure text on RUN_ERROR.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart:
		if e.Units <= 0 {
			return errors.New("run start requires units")
		}
	case StageRunTick, StageRunDone, StageRunError:
		if e.Current < 0 || e.Current > e.Total {
			return fmt.Errorf("tick %d outside [0, %d]", e.Current, e.Total)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// Terminal reports whether the stage ends a run.
func (e Event) Terminal() bool {
	return e.Stage == StageRunDone || e.Stage == StageRunError
}
