package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vnykmshr/taskflow/internal/testutil"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to State
		want     bool
	}{
		{Pending, Running, true},
		{Pending, Cancelled, true},
		{Pending, Completed, false},
		{Pending, Failed, false},
		{Running, Completed, true},
		{Running, Failed, true},
		{Running, Pending, true},
		{Running, Cancelled, true},
		{Completed, Running, false},
		{Completed, Pending, false},
		{Failed, Pending, false},
		{Cancelled, Running, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s->%s", tt.from, tt.to), func(t *testing.T) {
			testutil.AssertEqual(t, CanTransition(tt.from, tt.to), tt.want)
		})
	}
}

func TestTask_Transition(t *testing.T) {
	tk := &Task{ID: "t1"}
	testutil.AssertNoError(t, tk.Transition(Running))
	testutil.AssertNoError(t, tk.Transition(Completed))

	err := tk.Transition(Running)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransitionError, got %v", err)
	}
	testutil.AssertEqual(t, terr.From, Completed)
	testutil.AssertEqual(t, tk.State, Completed)
	testutil.AssertEqual(t, err.Error(), "task t1: invalid transition completed -> running")
}

func TestState_IsTerminal(t *testing.T) {
	testutil.AssertEqual(t, Pending.IsTerminal(), false)
	testutil.AssertEqual(t, Running.IsTerminal(), false)
	testutil.AssertEqual(t, Completed.IsTerminal(), true)
	testutil.AssertEqual(t, Failed.IsTerminal(), true)
	testutil.AssertEqual(t, Cancelled.IsTerminal(), true)
}

func TestState_TextRoundTrip(t *testing.T) {
	for st := Pending; st <= Cancelled; st++ {
		b, err := st.MarshalText()
		testutil.AssertNoError(t, err)

		var got State
		testutil.AssertNoError(t, got.UnmarshalText(b))
		testutil.AssertEqual(t, got, st)
	}

	var s State
	testutil.AssertError(t, s.UnmarshalText([]byte("exploded")))
}

func TestKindOf(t *testing.T) {
	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"plain error defaults to recoverable", base, KindRecoverable},
		{"recoverable", Recoverable(base), KindRecoverable},
		{"fatal", Fatal(base), KindFatal},
		{"wrapped fatal", fmt.Errorf("ctx: %w", Fatal(base)), KindFatal},
		{"deadline", context.DeadlineExceeded, KindTimeout},
		{"wrapped deadline", fmt.Errorf("dial: %w", context.DeadlineExceeded), KindTimeout},
		{"canceled", context.Canceled, KindCancelled},
		{"panic", &Error{Kind: KindPanic, Err: base}, KindPanic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testutil.AssertEqual(t, KindOf(tt.err), tt.want)
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	base := errors.New("disk full")

	if Recoverable(nil) != nil || Fatal(nil) != nil {
		t.Fatal("nil errors must stay nil")
	}

	rec := Recoverable(base)
	testutil.AssertEqual(t, IsRecoverable(rec), true)
	testutil.AssertEqual(t, IsFatal(rec), false)
	testutil.AssertEqual(t, errors.Is(rec, base), true)
	testutil.AssertEqual(t, rec.Error(), "task: recoverable: disk full")

	fat := Fatalf("bad input %d", 7)
	testutil.AssertEqual(t, IsFatal(fat), true)
	testutil.AssertEqual(t, IsRecoverable(fat), false)
	testutil.AssertEqual(t, fat.Error(), "task: fatal: bad input 7")

	testutil.AssertEqual(t, IsRecoverable(Recoverablef("retry %s", "me")), true)
	testutil.AssertEqual(t, IsFatal(&Error{Kind: KindPanic}), true)
}

func TestTimeoutMatchesSharedSentinel(t *testing.T) {
	err := &Error{Kind: KindTimeout, Err: context.DeadlineExceeded}
	testutil.AssertEqual(t, errors.Is(err, tferrors.ErrTimeout), true)
	testutil.AssertEqual(t, errors.Is(err, context.DeadlineExceeded), true)
	testutil.AssertEqual(t, KindTimeout.Retryable(), true)

	fatal := Fatal(errors.New("x"))
	testutil.AssertEqual(t, errors.Is(fatal, tferrors.ErrTimeout), false)
}

func TestSnapshot_IsIndependentCopy(t *testing.T) {
	now := time.Now()
	tk := &Task{
		ID:          "t1",
		Priority:    3,
		Class:       ClassIO,
		MaxAttempts: 2,
		Labels:      map[string]string{"team": "core"},
		State:       Failed,
		Attempts:    2,
		CreatedAt:   now,
		StartedAt:   now.Add(time.Second),
		CompletedAt: now.Add(3 * time.Second),
		Err:         Fatal(errors.New("nope")),
	}

	s := tk.Snapshot()
	tk.Labels["team"] = "changed"

	testutil.AssertEqual(t, s.Labels["team"], "core")
	testutil.AssertEqual(t, s.ErrKind, KindFatal)
	testutil.AssertEqual(t, s.Error, "task: fatal: nope")
	testutil.AssertEqual(t, s.Duration(), 2*time.Second)

	b, err := json.Marshal(s)
	testutil.AssertNoError(t, err)

	var decoded Snapshot
	testutil.AssertNoError(t, json.Unmarshal(b, &decoded))
	testutil.AssertEqual(t, decoded.State, Failed)
	testutil.AssertEqual(t, decoded.ErrKind, KindFatal)
	testutil.AssertEqual(t, decoded.CreatedAt.Equal(now), true)
}

func TestFunc(t *testing.T) {
	f := Func(func(ctx context.Context) (any, error) { return 42, nil })
	res, err := f.Execute(context.Background())
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, res.(int), 42)
}
