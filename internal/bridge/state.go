package bridge

// PhaseMultiplier is the number of logged passes the converter makes per unit:
// one parse pass and one build pass.
const PhaseMultiplier = 2

// State is the lifecycle position of a job.
type State string

// Job states in lifecycle order.
const (
	StateCreated   State = "created"
	StateBound     State = "bound"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// TotalTicks returns the tick budget for units, or 0 when units is not positive.
func TotalTicks(units int) int {
	if units <= 0 {
		return 0
	}
	return units * PhaseMultiplier
}
