package engine

import (
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vnykmshr/taskflow/pkg/archive"
	"github.com/vnykmshr/taskflow/pkg/backoff"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/observer"
	"github.com/vnykmshr/taskflow/pkg/scheduling/strategy"
)

// Defaults applied to zero Config fields.
const (
	DefaultName         = "default"
	DefaultMaxAttempts  = 3
	DefaultPollInterval = 50 * time.Millisecond
	DefaultArchiveLimit = 10000
)

// Config holds engine configuration. The zero value is usable: every zero
// field is replaced by its default.
type Config struct {
	// Name labels logs and metrics. Default "default".
	Name string

	// MaxWorkers bounds how many attempts run at once. Default runtime.NumCPU().
	MaxWorkers int

	// Strategy picks the next pending task. Default strategy.Priority.
	Strategy strategy.Strategy

	// DefaultMaxAttempts applies to tasks submitted without WithMaxAttempts.
	DefaultMaxAttempts int

	// DefaultTimeout bounds each attempt of tasks submitted without
	// WithTimeout. Zero means no per-attempt deadline.
	DefaultTimeout time.Duration

	// DefaultBackoff applies to tasks submitted without WithBackoff.
	// Nil means backoff.DefaultSpec(). A fixed Spec with no BaseDelay
	// retries immediately.
	DefaultBackoff *backoff.Spec

	// PollInterval bounds how long the dispatch loop sleeps without a wake
	// signal. Default 50ms.
	PollInterval time.Duration

	// DispatchRate limits how many attempts are started per second.
	// Zero disables rate limiting.
	DispatchRate rate.Limit

	// DispatchBurst is the limiter burst. Default 1 when DispatchRate is set.
	DispatchBurst int

	// Observers receive lifecycle events in order.
	Observers []observer.Observer

	// Archive receives snapshots of retired tasks.
	// Default archive.NewMemory(DefaultArchiveLimit).
	Archive archive.Archive

	// Logger for engine diagnostics. Default zap.NewNop().
	Logger *zap.Logger

	// Metrics enables Prometheus instrumentation of the engine and its pool.
	Metrics metrics.Config

	// Clock supplies timestamps. Default time.Now.
	Clock func() time.Time

	// IDGenerator produces task ids. Default UUIDv7 strings.
	IDGenerator func() string
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	var c Config
	c.applyDefaults()
	return c
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = DefaultName
	}
	if c.MaxWorkers == 0 {
		c.MaxWorkers = runtime.NumCPU()
	}
	if c.Strategy == nil {
		c.Strategy = strategy.Priority{}
	}
	if c.DefaultMaxAttempts == 0 {
		c.DefaultMaxAttempts = DefaultMaxAttempts
	}
	if c.DefaultBackoff == nil {
		spec := backoff.DefaultSpec()
		c.DefaultBackoff = &spec
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.DispatchRate > 0 && c.DispatchBurst == 0 {
		c.DispatchBurst = 1
	}
	if c.Archive == nil {
		c.Archive = archive.NewMemory(DefaultArchiveLimit)
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	if c.IDGenerator == nil {
		c.IDGenerator = newUUID
	}
}

func (c *Config) validate() error {
	if err := validation.ValidatePositive("engine", "max_workers", c.MaxWorkers); err != nil {
		return err
	}
	if err := validation.ValidatePositive("engine", "default_max_attempts", c.DefaultMaxAttempts); err != nil {
		return err
	}
	if err := validation.ValidateNonNegativeDuration("engine", "default_timeout", c.DefaultTimeout); err != nil {
		return err
	}
	if err := validation.ValidatePositive("engine", "poll_interval", int(c.PollInterval)); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("engine", "dispatch_rate", float64(c.DispatchRate)); err != nil {
		return err
	}
	if c.DispatchRate > 0 {
		if err := validation.ValidatePositive("engine", "dispatch_burst", c.DispatchBurst); err != nil {
			return err
		}
	}
	for _, o := range c.Observers {
		if err := validation.ValidateNotNil("engine", "observer", o); err != nil {
			return err
		}
	}
	return c.DefaultBackoff.Validate()
}
