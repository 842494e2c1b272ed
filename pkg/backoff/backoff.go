// Package backoff computes the delay inserted between retry attempts.
//
// Every Policy is a pure function of the attempt number and its static
// configuration; policies hold no per-task state and are safe for
// concurrent use. Attempt numbers are 1-indexed: NextDelay(1) is the delay
// after the first failed attempt.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy computes the delay before the retry that follows attempt.
type Policy interface {
	NextDelay(attempt int) time.Duration
}

// PolicyFunc adapts a function to the Policy interface.
type PolicyFunc func(attempt int) time.Duration

// NextDelay implements Policy.
func (f PolicyFunc) NextDelay(attempt int) time.Duration {
	return f(attempt)
}

// Constant always returns the same delay.
type Constant struct {
	Delay time.Duration
}

// NextDelay returns the fixed delay.
func (c Constant) NextDelay(_ int) time.Duration {
	return c.Delay
}

// Linear grows the delay linearly: Base * attempt, capped at Cap when Cap > 0.
type Linear struct {
	Base time.Duration
	Cap  time.Duration
}

// NextDelay returns Base * attempt.
func (l Linear) NextDelay(attempt int) time.Duration {
	return capDelay(float64(l.Base)*float64(clampAttempt(attempt)), l.Cap)
}

// Exponential grows the delay geometrically: Base * Multiplier^(attempt-1),
// capped at Cap when Cap > 0. A Multiplier below 1 is treated as 2.
type Exponential struct {
	Base       time.Duration
	Multiplier float64
	Cap        time.Duration
}

// NextDelay returns Base * Multiplier^(attempt-1).
func (e Exponential) NextDelay(attempt int) time.Duration {
	m := e.Multiplier
	if m < 1 {
		m = DefaultMultiplier
	}
	d := float64(e.Base) * math.Pow(m, float64(clampAttempt(attempt)-1))
	return capDelay(d, e.Cap)
}

// Jitter scales the delay of Base by a uniform random factor in [0.5, 1.5)
// so that tasks failing together do not retry together.
type Jitter struct {
	Base Policy
	Cap  time.Duration

	// Rand returns a value in [0, 1). Defaults to math/rand.Float64.
	Rand func() float64
}

// NextDelay returns Base.NextDelay(attempt) scaled by the jitter factor.
func (j Jitter) NextDelay(attempt int) time.Duration {
	r := j.Rand
	if r == nil {
		r = rand.Float64 //nolint:gosec // jitter does not need crypto randomness
	}
	factor := MinJitterFactor + r()*(MaxJitterFactor-MinJitterFactor)
	return capDelay(float64(j.Base.NextDelay(attempt))*factor, j.Cap)
}

// Jitter factor bounds.
const (
	MinJitterFactor = 0.5
	MaxJitterFactor = 1.5
)

func clampAttempt(attempt int) int {
	if attempt < 1 {
		return 1
	}
	return attempt
}

func capDelay(d float64, limit time.Duration) time.Duration {
	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	if limit > 0 && d > float64(limit) {
		return limit
	}
	if d >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}
