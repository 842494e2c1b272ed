package engine

import (
	"time"

	"github.com/vnykmshr/taskflow/pkg/backoff"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// NoTimeout passed to WithTimeout or Spec.Timeout runs the task without a
// per-attempt deadline, even when Config.DefaultTimeout is set.
const NoTimeout time.Duration = -1

// Spec describes a task to submit. Zero fields take the engine defaults.
type Spec struct {
	// ID overrides the generated id. It must be unique among known tasks.
	ID string

	Exec     task.Executable
	Priority int
	Class    task.Class

	// MaxAttempts bounds the number of attempts. Zero uses the engine default.
	MaxAttempts int

	// Timeout bounds each attempt. Zero uses the engine default and
	// NoTimeout disables the deadline.
	Timeout time.Duration

	// Backoff describes the retry delay. Nil uses the engine default.
	Backoff *backoff.Spec

	// BackoffPolicy takes precedence over Backoff when set.
	BackoffPolicy backoff.Policy

	Labels map[string]string
}

// SubmitOption customizes a Spec built by Submit.
type SubmitOption func(*Spec)

// WithPriority sets the task priority. Higher is more urgent.
func WithPriority(p int) SubmitOption {
	return func(s *Spec) { s.Priority = p }
}

// WithMaxAttempts sets the attempt budget.
func WithMaxAttempts(n int) SubmitOption {
	return func(s *Spec) { s.MaxAttempts = n }
}

// WithTimeout sets the per-attempt deadline. Use NoTimeout to opt out of
// Config.DefaultTimeout.
func WithTimeout(d time.Duration) SubmitOption {
	return func(s *Spec) { s.Timeout = d }
}

// WithBackoff sets the retry delay curve.
func WithBackoff(b backoff.Spec) SubmitOption {
	return func(s *Spec) { s.Backoff = &b }
}

// WithBackoffPolicy sets a ready-made retry delay policy.
func WithBackoffPolicy(p backoff.Policy) SubmitOption {
	return func(s *Spec) { s.BackoffPolicy = p }
}

// WithClass sets the cost hint used by shortest-job-first scheduling.
func WithClass(c task.Class) SubmitOption {
	return func(s *Spec) { s.Class = c }
}

// WithLabels attaches labels that are copied into every snapshot.
func WithLabels(labels map[string]string) SubmitOption {
	return func(s *Spec) {
		s.Labels = make(map[string]string, len(labels))
		for k, v := range labels {
			s.Labels[k] = v
		}
	}
}

// WithID sets an explicit task id.
func WithID(id string) SubmitOption {
	return func(s *Spec) { s.ID = id }
}
