package task

import "fmt"

// State is the lifecycle state of a Task.
type State int

const (
	// Pending tasks wait in the engine's pending set (or out a backoff delay).
	Pending State = iota
	// Running tasks own a worker slot.
	Running
	// Completed tasks finished successfully.
	Completed
	// Failed tasks exhausted their attempts or hit a fatal error.
	Failed
	// Cancelled tasks were cancelled by the caller or by shutdown.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further transition is possible from s.
func (s State) IsTerminal() bool {
	return s == Completed || s == Failed || s == Cancelled
}

// CanTransition reports whether the forward-only state machine allows from -> to.
func CanTransition(from, to State) bool {
	switch from {
	case Pending:
		return to == Running || to == Cancelled
	case Running:
		return to == Completed || to == Failed || to == Pending || to == Cancelled
	default:
		return false
	}
}

// ParseState parses the String form of a State.
func ParseState(s string) (State, bool) {
	for st := Pending; st <= Cancelled; st++ {
		if st.String() == s {
			return st, true
		}
	}
	return Pending, false
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	st, ok := ParseState(string(b))
	if !ok {
		return fmt.Errorf("task: unknown state %q", b)
	}
	*s = st
	return nil
}
