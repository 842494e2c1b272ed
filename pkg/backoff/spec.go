package backoff

import (
	"fmt"
	"time"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
)

// Strategy selects the growth curve of a Spec.
type Strategy int

const (
	// StrategyFixed waits BaseDelay between every attempt.
	StrategyFixed Strategy = iota
	// StrategyLinear waits BaseDelay * attempt.
	StrategyLinear
	// StrategyExponential waits BaseDelay * Multiplier^(attempt-1).
	StrategyExponential
	// StrategyJittered is StrategyExponential with jitter applied.
	StrategyJittered
)

func (s Strategy) String() string {
	switch s {
	case StrategyFixed:
		return "fixed"
	case StrategyLinear:
		return "linear"
	case StrategyExponential:
		return "exponential"
	case StrategyJittered:
		return "jittered"
	default:
		return fmt.Sprintf("strategy(%d)", int(s))
	}
}

// Defaults used by DefaultSpec and for zero fields.
const (
	DefaultBaseDelay  = 100 * time.Millisecond
	DefaultMultiplier = 2.0
	DefaultCap        = 30 * time.Second
)

// Spec is the declarative form of a backoff Policy.
type Spec struct {
	Strategy   Strategy
	BaseDelay  time.Duration
	Multiplier float64       // exponential growth factor, 0 means DefaultMultiplier
	Cap        time.Duration // 0 means uncapped
	Jitter     bool          // scale any strategy by a factor in [0.5, 1.5)
}

// DefaultSpec returns exponential backoff starting at 100ms, doubling, capped at 30s.
func DefaultSpec() Spec {
	return Spec{
		Strategy:   StrategyExponential,
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
		Cap:        DefaultCap,
	}
}

// Validate reports configuration errors as *errors.ValidationError.
func (s Spec) Validate() error {
	if s.Strategy < StrategyFixed || s.Strategy > StrategyJittered {
		return tferrors.NewValidationError("backoff", "strategy", int(s.Strategy), "unknown strategy").
			WithHint("use StrategyFixed, StrategyLinear, StrategyExponential or StrategyJittered")
	}
	if err := validation.ValidateNonNegativeDuration("backoff", "base_delay", s.BaseDelay); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("backoff", "cap", s.Cap); err != nil {
		return err
	}
	if s.Multiplier != 0 {
		if err := validation.ValidateAtLeast("backoff", "multiplier", s.Multiplier, 1); err != nil {
			return err
		}
	}
	return nil
}

// Policy builds the Policy described by s.
func (s Spec) Policy() (Policy, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	var p Policy
	switch s.Strategy {
	case StrategyFixed:
		p = Constant{Delay: s.BaseDelay}
	case StrategyLinear:
		p = Linear{Base: s.BaseDelay, Cap: s.Cap}
	case StrategyExponential, StrategyJittered:
		m := s.Multiplier
		if m == 0 {
			m = DefaultMultiplier
		}
		p = Exponential{Base: s.BaseDelay, Multiplier: m, Cap: s.Cap}
	}

	if s.Jitter || s.Strategy == StrategyJittered {
		p = Jitter{Base: p, Cap: s.Cap}
	}
	return p, nil
}

// MustPolicy is like Policy but panics on invalid specs.
func (s Spec) MustPolicy() Policy {
	p, err := s.Policy()
	if err != nil {
		panic(err)
	}
	return p
}
