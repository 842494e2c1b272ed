package backoff

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/vnykmshr/taskflow/internal/testutil"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
)

func TestConstant(t *testing.T) {
	c := Constant{Delay: 5 * time.Second}
	for attempt := 1; attempt <= 10; attempt++ {
		testutil.AssertEqual(t, c.NextDelay(attempt), 5*time.Second)
	}
}

func TestLinear(t *testing.T) {
	l := Linear{Base: time.Second, Cap: 4 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 1 * time.Second},
		{1, 1 * time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{5, 4 * time.Second},
	}

	for _, tt := range tests {
		if got := l.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential(t *testing.T) {
	e := Exponential{Base: 100 * time.Millisecond, Multiplier: 3, Cap: 2 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 300 * time.Millisecond},
		{3, 900 * time.Millisecond},
		{4, 2 * time.Second},
		{100, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := e.NextDelay(tt.attempt); got != tt.want {
			t.Errorf("NextDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestExponential_UncappedOverflow(t *testing.T) {
	e := Exponential{Base: time.Second, Multiplier: 2}
	if got := e.NextDelay(10000); got != time.Duration(math.MaxInt64) {
		t.Errorf("NextDelay(10000) = %v, want saturation at MaxInt64", got)
	}

	zero := Exponential{Multiplier: 2}
	testutil.AssertEqual(t, zero.NextDelay(10000), time.Duration(0))
}

func TestJitter_Bounds(t *testing.T) {
	base := Constant{Delay: time.Second}

	tests := []struct {
		name string
		r    float64
		want time.Duration
	}{
		{"lowest factor", 0, 500 * time.Millisecond},
		{"midpoint", 0.5, time.Second},
		{"upper quarter", 0.75, 1250 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := Jitter{Base: base, Rand: func() float64 { return tt.r }}
			testutil.AssertEqual(t, j.NextDelay(1), tt.want)
		})
	}
}

func TestJitter_DefaultRandomStaysInRange(t *testing.T) {
	j := Jitter{Base: Exponential{Base: 100 * time.Millisecond, Multiplier: 2}}
	for attempt := 1; attempt <= 5; attempt++ {
		base := Exponential{Base: 100 * time.Millisecond, Multiplier: 2}.NextDelay(attempt)
		for i := 0; i < 200; i++ {
			d := j.NextDelay(attempt)
			if d < base/2 || d > base*3/2 {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, base/2, base*3/2)
			}
		}
	}
}

func TestSpec_Policy(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		attempt int
		want    time.Duration
	}{
		{"fixed", Spec{Strategy: StrategyFixed, BaseDelay: 50 * time.Millisecond}, 3, 50 * time.Millisecond},
		{"linear", Spec{Strategy: StrategyLinear, BaseDelay: 50 * time.Millisecond}, 3, 150 * time.Millisecond},
		{"exponential default multiplier", Spec{Strategy: StrategyExponential, BaseDelay: 10 * time.Millisecond}, 4, 80 * time.Millisecond},
		{"exponential capped", Spec{Strategy: StrategyExponential, BaseDelay: 10 * time.Millisecond, Multiplier: 10, Cap: 500 * time.Millisecond}, 4, 500 * time.Millisecond},
		{"default spec", DefaultSpec(), 2, 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := tt.spec.Policy()
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, p.NextDelay(tt.attempt), tt.want)
		})
	}
}

func TestSpec_JitteredWrapsExponential(t *testing.T) {
	p, err := Spec{Strategy: StrategyJittered, BaseDelay: 100 * time.Millisecond, Cap: time.Second}.Policy()
	testutil.AssertNoError(t, err)

	j, ok := p.(Jitter)
	if !ok {
		t.Fatalf("expected Jitter policy, got %T", p)
	}
	if _, ok := j.Base.(Exponential); !ok {
		t.Fatalf("expected Exponential base, got %T", j.Base)
	}

	for i := 0; i < 100; i++ {
		if d := p.NextDelay(10); d > time.Second {
			t.Fatalf("jittered delay %v exceeds cap", d)
		}
	}
}

func TestSpec_JitterFlag(t *testing.T) {
	p, err := Spec{Strategy: StrategyLinear, BaseDelay: time.Second, Jitter: true}.Policy()
	testutil.AssertNoError(t, err)
	if _, ok := p.(Jitter); !ok {
		t.Fatalf("expected Jitter policy, got %T", p)
	}
}

func TestSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		spec    Spec
		wantErr bool
	}{
		{"default", DefaultSpec(), false},
		{"zero value", Spec{}, false},
		{"negative base", Spec{BaseDelay: -time.Second}, true},
		{"negative cap", Spec{Cap: -time.Second}, true},
		{"shrinking multiplier", Spec{Strategy: StrategyExponential, Multiplier: 0.5}, true},
		{"unknown strategy", Spec{Strategy: Strategy(42)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.spec.Validate()
			if tt.wantErr {
				testutil.AssertError(t, err)
				if !errors.Is(err, tferrors.ErrInvalidConfiguration) {
					t.Errorf("expected ErrInvalidConfiguration, got %v", err)
				}
				if _, perr := tt.spec.Policy(); perr == nil {
					t.Error("Policy() should fail for invalid spec")
				}
				return
			}
			testutil.AssertNoError(t, err)
		})
	}
}

func TestSpec_MustPolicyPanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("expected panic")
		}
	}()
	Spec{BaseDelay: -1}.MustPolicy()
}

func TestStrategy_String(t *testing.T) {
	testutil.AssertEqual(t, StrategyFixed.String(), "fixed")
	testutil.AssertEqual(t, StrategyJittered.String(), "jittered")
	testutil.AssertEqual(t, Strategy(9).String(), "strategy(9)")
}

func TestPolicyFunc(t *testing.T) {
	p := PolicyFunc(func(attempt int) time.Duration { return time.Duration(attempt) * time.Millisecond })
	testutil.AssertEqual(t, p.NextDelay(7), 7*time.Millisecond)
}
