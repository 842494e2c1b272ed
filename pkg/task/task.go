package task

import (
	"context"
	"time"

	"github.com/vnykmshr/taskflow/pkg/backoff"
)

// Executable is the operation a Task runs. Execute must honor ctx: the
// engine cancels it when the attempt deadline passes or the task is cancelled.
// Failures are classified with Recoverable and Fatal.
type Executable interface {
	Execute(ctx context.Context) (any, error)
}

// Func adapts a function to the Executable interface.
type Func func(ctx context.Context) (any, error)

// Execute implements Executable.
func (f Func) Execute(ctx context.Context) (any, error) {
	return f(ctx)
}

// Class is a coarse hint about the cost profile of a task, used by
// shortest-job-first scheduling.
type Class int

const (
	// ClassDefault tasks carry no hint.
	ClassDefault Class = iota
	// ClassIO tasks mostly wait on I/O and are considered fast.
	ClassIO
	// ClassCPU tasks are compute bound.
	ClassCPU
)

func (c Class) String() string {
	switch c {
	case ClassIO:
		return "io"
	case ClassCPU:
		return "cpu"
	default:
		return "default"
	}
}

// Task is the engine-owned record of one unit of work.
type Task struct {
	ID          string
	Priority    int
	Class       Class
	Exec        Executable
	MaxAttempts int
	Timeout     time.Duration // per attempt, 0 disables
	Backoff     backoff.Policy
	Labels      map[string]string

	// Seq is the submission sequence number, a tie-breaker for equal CreatedAt.
	Seq uint64

	State       State
	Attempts    int
	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time
	Result      any
	Err         error
}

// Transition moves t to state to, enforcing the forward-only state machine.
func (t *Task) Transition(to State) error {
	if !CanTransition(t.State, to) {
		return &TransitionError{ID: t.ID, From: t.State, To: to}
	}
	t.State = to
	return nil
}

// Snapshot returns an immutable copy of t for observers and callers.
func (t *Task) Snapshot() Snapshot {
	s := Snapshot{
		ID:          t.ID,
		Priority:    t.Priority,
		Class:       t.Class,
		State:       t.State,
		Attempts:    t.Attempts,
		MaxAttempts: t.MaxAttempts,
		Timeout:     t.Timeout,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Result:      t.Result,
		Err:         t.Err,
		ErrKind:     KindOf(t.Err),
	}
	if t.Err != nil {
		s.Error = t.Err.Error()
	}
	if len(t.Labels) > 0 {
		s.Labels = make(map[string]string, len(t.Labels))
		for k, v := range t.Labels {
			s.Labels[k] = v
		}
	}
	return s
}

// Snapshot is a point-in-time copy of a Task.
type Snapshot struct {
	ID          string            `json:"id"`
	Priority    int               `json:"priority"`
	Class       Class             `json:"class"`
	State       State             `json:"state"`
	Attempts    int               `json:"attempts"`
	MaxAttempts int               `json:"max_attempts"`
	Timeout     time.Duration     `json:"timeout"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
	Labels      map[string]string `json:"labels,omitempty"`
	Error       string            `json:"error,omitempty"`
	ErrKind     Kind              `json:"error_kind"`

	// Result and Err are not persisted; archives keep Error and ErrKind.
	Result any   `json:"-"`
	Err    error `json:"-"`
}

// Duration returns how long the last attempt ran, or zero if unknown.
func (s Snapshot) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.CompletedAt.IsZero() {
		return 0
	}
	return s.CompletedAt.Sub(s.StartedAt)
}

// TransitionError reports a state change the state machine forbids.
type TransitionError struct {
	ID   string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return "task " + e.ID + ": invalid transition " + e.From.String() + " -> " + e.To.String()
}
