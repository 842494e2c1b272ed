package observer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/vnykmshr/taskflow/internal/testutil"
	"github.com/vnykmshr/taskflow/pkg/task"
)

func snap(id string, state task.State, attempts int) task.Snapshot {
	return task.Snapshot{ID: id, State: state, Attempts: attempts, MaxAttempts: 3}
}

func TestEventString(t *testing.T) {
	tests := []struct {
		ev       Event
		want     string
		terminal bool
	}{
		{EventStarted, "started", false},
		{EventRetried, "retried", false},
		{EventCompleted, "completed", true},
		{EventFailed, "failed", true},
		{EventCancelled, "cancelled", true},
		{Event(99), "unknown", false},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			testutil.AssertEqual(t, tt.ev.String(), tt.want)
			testutil.AssertEqual(t, tt.ev.Terminal(), tt.terminal)
		})
	}
}

func TestNotifyDispatchesToHook(t *testing.T) {
	var got []string
	record := func(name string) func(context.Context, task.Snapshot) error {
		return func(_ context.Context, s task.Snapshot) error {
			got = append(got, name+":"+s.ID)
			return nil
		}
	}
	o := Funcs{
		Started:   record("started"),
		Retried:   record("retried"),
		Completed: record("completed"),
		Failed:    record("failed"),
		Cancelled: record("cancelled"),
	}

	for _, ev := range []Event{EventStarted, EventRetried, EventCompleted, EventFailed, EventCancelled} {
		testutil.AssertNoError(t, Notify(context.Background(), o, ev, snap("t1", task.Running, 1)))
	}

	want := "started:t1,retried:t1,completed:t1,failed:t1,cancelled:t1"
	testutil.AssertEqual(t, strings.Join(got, ","), want)
}

func TestNotifyWrapsErrors(t *testing.T) {
	hookErr := errors.New("sink down")
	o := Funcs{Completed: func(context.Context, task.Snapshot) error { return hookErr }}

	err := Notify(context.Background(), o, EventCompleted, snap("t1", task.Completed, 1))

	var oerr *Error
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *Error, got %T", err)
	}
	testutil.AssertEqual(t, oerr.Event, EventCompleted)
	testutil.AssertEqual(t, oerr.TaskID, "t1")
	testutil.AssertEqual(t, oerr.Panicked, false)
	if !errors.Is(err, hookErr) {
		t.Errorf("expected wrapped hook error, got %v", err)
	}
	testutil.AssertEqual(t, err.Error(), "observer completed hook for task t1: sink down")
}

func TestNotifyRecoversPanics(t *testing.T) {
	o := Funcs{Started: func(context.Context, task.Snapshot) error { panic("boom") }}

	err := Notify(context.Background(), o, EventStarted, snap("t1", task.Running, 1))

	var oerr *Error
	if !errors.As(err, &oerr) {
		t.Fatalf("expected *Error, got %v", err)
	}
	testutil.AssertEqual(t, oerr.Panicked, true)
	if len(oerr.Stack) == 0 {
		t.Error("expected stack trace")
	}
	if !strings.Contains(err.Error(), "panic: boom") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestNopAndNilFuncs(t *testing.T) {
	for _, o := range []Observer{Nop{}, Funcs{}} {
		for _, ev := range []Event{EventStarted, EventRetried, EventCompleted, EventFailed, EventCancelled} {
			testutil.AssertNoError(t, Notify(context.Background(), o, ev, snap("t", task.Running, 1)))
		}
	}
}

func TestMultiDeliversDespiteFailures(t *testing.T) {
	rec := NewRecorder()
	failing := Funcs{Completed: func(context.Context, task.Snapshot) error { return errors.New("first") }}
	panicking := Funcs{Completed: func(context.Context, task.Snapshot) error { panic("second") }}

	m := Multi(failing, panicking, rec)
	err := m.OnCompleted(context.Background(), snap("t1", task.Completed, 1))

	testutil.AssertError(t, err)
	if !strings.Contains(err.Error(), "first") || !strings.Contains(err.Error(), "panic: second") {
		t.Errorf("expected both failures joined, got %q", err.Error())
	}
	testutil.AssertEqual(t, rec.Count(EventCompleted), 1)

	testutil.AssertNoError(t, m.OnStarted(context.Background(), snap("t1", task.Running, 1)))
	testutil.AssertEqual(t, rec.Count(EventStarted), 1)
}

func TestRecorder(t *testing.T) {
	rec := NewRecorder()
	ctx := context.Background()

	_ = rec.OnStarted(ctx, snap("a", task.Running, 1))
	_ = rec.OnStarted(ctx, snap("b", task.Running, 1))
	_ = rec.OnRetried(ctx, snap("a", task.Pending, 1))
	_ = rec.OnStarted(ctx, snap("a", task.Running, 2))
	_ = rec.OnCompleted(ctx, snap("a", task.Completed, 2))
	_ = rec.OnCancelled(ctx, snap("b", task.Cancelled, 1))

	events := rec.Events("a")
	want := []Event{EventStarted, EventRetried, EventStarted, EventCompleted}
	testutil.AssertEqual(t, len(events), len(want))
	for i := range want {
		testutil.AssertEqual(t, events[i], want[i])
	}

	last, ok := rec.Last("b")
	testutil.AssertEqual(t, ok, true)
	testutil.AssertEqual(t, last.Event, EventCancelled)

	_, ok = rec.Last("missing")
	testutil.AssertEqual(t, ok, false)

	testutil.AssertEqual(t, rec.Count(EventStarted), 3)
	testutil.AssertEqual(t, len(rec.Records()), 6)

	rec.Reset()
	testutil.AssertEqual(t, len(rec.Records()), 0)
}
