package observer

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/vnykmshr/taskflow/pkg/task"
)

// Observer receives task lifecycle notifications. For one task the engine
// calls the hooks in the order Started, (Retried)*, then exactly one of
// Completed, Failed or Cancelled. Started marks the first attempt; each
// Retried carries the attempt that just failed. A task cancelled before it
// ever ran sees only Cancelled.
//
// Hooks run synchronously on engine goroutines and must not block for long.
// A returned error or a panic is logged and counted by the engine; it never
// changes the outcome of the task.
type Observer interface {
	OnStarted(ctx context.Context, snap task.Snapshot) error
	OnRetried(ctx context.Context, snap task.Snapshot) error
	OnCompleted(ctx context.Context, snap task.Snapshot) error
	OnFailed(ctx context.Context, snap task.Snapshot) error
	OnCancelled(ctx context.Context, snap task.Snapshot) error
}

// Event names a lifecycle hook.
type Event int

const (
	EventStarted Event = iota
	EventRetried
	EventCompleted
	EventFailed
	EventCancelled
)

func (e Event) String() string {
	switch e {
	case EventStarted:
		return "started"
	case EventRetried:
		return "retried"
	case EventCompleted:
		return "completed"
	case EventFailed:
		return "failed"
	case EventCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether e ends a task's lifecycle.
func (e Event) Terminal() bool {
	return e == EventCompleted || e == EventFailed || e == EventCancelled
}

// Error wraps a failed or panicking observer hook.
type Error struct {
	Event    Event
	TaskID   string
	Err      error
	Panicked bool
	Stack    []byte
}

func (e *Error) Error() string {
	return fmt.Sprintf("observer %s hook for task %s: %v", e.Event, e.TaskID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Notify delivers ev to o, converting a returned error or a panic into *Error.
func Notify(ctx context.Context, o Observer, ev Event, snap task.Snapshot) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{
				Event:    ev,
				TaskID:   snap.ID,
				Err:      fmt.Errorf("panic: %v", r),
				Panicked: true,
				Stack:    debug.Stack(),
			}
		}
	}()

	var hookErr error
	switch ev {
	case EventStarted:
		hookErr = o.OnStarted(ctx, snap)
	case EventRetried:
		hookErr = o.OnRetried(ctx, snap)
	case EventCompleted:
		hookErr = o.OnCompleted(ctx, snap)
	case EventFailed:
		hookErr = o.OnFailed(ctx, snap)
	case EventCancelled:
		hookErr = o.OnCancelled(ctx, snap)
	default:
		hookErr = fmt.Errorf("unknown event %d", int(ev))
	}
	if hookErr != nil {
		return &Error{Event: ev, TaskID: snap.ID, Err: hookErr}
	}
	return nil
}

// Nop implements Observer with hooks that do nothing. Embed it to
// implement only the hooks you need.
type Nop struct{}

func (Nop) OnStarted(context.Context, task.Snapshot) error   { return nil }
func (Nop) OnRetried(context.Context, task.Snapshot) error   { return nil }
func (Nop) OnCompleted(context.Context, task.Snapshot) error { return nil }
func (Nop) OnFailed(context.Context, task.Snapshot) error    { return nil }
func (Nop) OnCancelled(context.Context, task.Snapshot) error { return nil }

// Funcs adapts plain functions to Observer. Nil fields are skipped.
type Funcs struct {
	Started   func(ctx context.Context, snap task.Snapshot) error
	Retried   func(ctx context.Context, snap task.Snapshot) error
	Completed func(ctx context.Context, snap task.Snapshot) error
	Failed    func(ctx context.Context, snap task.Snapshot) error
	Cancelled func(ctx context.Context, snap task.Snapshot) error
}

func call(fn func(context.Context, task.Snapshot) error, ctx context.Context, snap task.Snapshot) error {
	if fn == nil {
		return nil
	}
	return fn(ctx, snap)
}

func (f Funcs) OnStarted(ctx context.Context, s task.Snapshot) error   { return call(f.Started, ctx, s) }
func (f Funcs) OnRetried(ctx context.Context, s task.Snapshot) error   { return call(f.Retried, ctx, s) }
func (f Funcs) OnCompleted(ctx context.Context, s task.Snapshot) error { return call(f.Completed, ctx, s) }
func (f Funcs) OnFailed(ctx context.Context, s task.Snapshot) error    { return call(f.Failed, ctx, s) }
func (f Funcs) OnCancelled(ctx context.Context, s task.Snapshot) error { return call(f.Cancelled, ctx, s) }

// Multi fans every event out to observers in order. A failing or panicking
// observer does not stop delivery to the rest; all failures are joined.
func Multi(observers ...Observer) Observer {
	return multi(observers)
}

type multi []Observer

func (m multi) notify(ctx context.Context, ev Event, snap task.Snapshot) error {
	var errs []error
	for _, o := range m {
		if err := Notify(ctx, o, ev, snap); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m multi) OnStarted(ctx context.Context, s task.Snapshot) error {
	return m.notify(ctx, EventStarted, s)
}

func (m multi) OnRetried(ctx context.Context, s task.Snapshot) error {
	return m.notify(ctx, EventRetried, s)
}

func (m multi) OnCompleted(ctx context.Context, s task.Snapshot) error {
	return m.notify(ctx, EventCompleted, s)
}

func (m multi) OnFailed(ctx context.Context, s task.Snapshot) error {
	return m.notify(ctx, EventFailed, s)
}

func (m multi) OnCancelled(ctx context.Context, s task.Snapshot) error {
	return m.notify(ctx, EventCancelled, s)
}
