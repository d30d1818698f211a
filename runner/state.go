package runner

import "fmt"

// State is a runner's position in its lifecycle. The numeric values match
// the state snapshots persisted by earlier sessions, so a resumed config
// round-trips unchanged.
type State int

const (
	// NoPosition: no active trade yet, waiting for admission to open.
	NoPosition State = -1
	// Stopped: terminal, the loop exits on the next dispatch.
	Stopped State = 0
	// Holding: a position is open, steady-state threshold monitoring.
	Holding State = 1
)

func (s State) String() string {
	switch s {
	case NoPosition:
		return "no-position"
	case Stopped:
		return "stopped"
	case Holding:
		return "holding"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// StateFromInt converts a persisted snapshot value, rejecting anything
// outside the three known states.
func StateFromInt(v int) (State, bool) {
	switch State(v) {
	case NoPosition, Stopped, Holding:
		return State(v), true
	default:
		return NoPosition, false
	}
}
