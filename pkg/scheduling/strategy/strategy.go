// Package strategy provides the pluggable policies that decide which
// pending task the engine dispatches next.
//
// A Strategy only looks at the pending set; it must not modify the slice
// or the tasks in it. The engine removes the selected task itself, under
// the same lock, so selection and removal are atomic.
package strategy

import (
	"strings"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// Strategy selects the next task to dispatch.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// Select returns the index in pending of the task to dispatch next,
	// or -1 when pending is empty.
	Select(pending []*task.Task) int
}

// earlier reports whether a was submitted before b.
func earlier(a, b *task.Task) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.Seq < b.Seq
}

// Priority dispatches the highest priority first. Ties go to the task
// submitted first, so equal-priority work cannot starve.
type Priority struct{}

// Name implements Strategy.
func (Priority) Name() string { return "priority" }

// Select implements Strategy.
func (Priority) Select(pending []*task.Task) int {
	best := -1
	for i, t := range pending {
		if best < 0 {
			best = i
			continue
		}
		b := pending[best]
		if t.Priority > b.Priority || (t.Priority == b.Priority && earlier(t, b)) {
			best = i
		}
	}
	return best
}

// FIFO dispatches in submission order.
type FIFO struct{}

// Name implements Strategy.
func (FIFO) Name() string { return "fifo" }

// Select implements Strategy.
func (FIFO) Select(pending []*task.Task) int {
	best := -1
	for i, t := range pending {
		if best < 0 || earlier(t, pending[best]) {
			best = i
		}
	}
	return best
}

// ShortestJobFirst is a heuristic that prefers tasks of the Fast class
// (I/O-bound by default) and falls back to FIFO within a class.
type ShortestJobFirst struct {
	Fast task.Class
}

// Name implements Strategy.
func (ShortestJobFirst) Name() string { return "sjf" }

// Select implements Strategy.
func (s ShortestJobFirst) Select(pending []*task.Task) int {
	fast := s.Fast
	if fast == task.ClassDefault {
		fast = task.ClassIO
	}

	best := -1
	for i, t := range pending {
		if best < 0 {
			best = i
			continue
		}
		b := pending[best]
		tFast, bFast := t.Class == fast, b.Class == fast
		if tFast != bFast {
			if tFast {
				best = i
			}
			continue
		}
		if earlier(t, b) {
			best = i
		}
	}
	return best
}

// ByName returns the strategy registered under name
// ("priority", "fifo", "sjf"; case-insensitive).
func ByName(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "priority":
		return Priority{}, nil
	case "fifo":
		return FIFO{}, nil
	case "sjf", "shortest-job-first":
		return ShortestJobFirst{Fast: task.ClassIO}, nil
	default:
		return nil, tferrors.NewValidationError("strategy", "name", name, "unknown strategy").
			WithHint("use priority, fifo or sjf")
	}
}
