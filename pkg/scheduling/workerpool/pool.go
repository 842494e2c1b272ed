package workerpool

import (
	"context"
	"sync"

	"github.com/vnykmshr/taskflow/pkg/common/errors"
)

// Pool is a counting pool of worker slots. A caller holds a slot for the
// duration of one task attempt, which bounds how many attempts run at once.
type Pool interface {
	// Acquire blocks until a slot is available or ctx is done.
	// A cancelled Acquire never holds a slot and leaves no waiter behind.
	Acquire(ctx context.Context) error

	// TryAcquire takes a slot if one is free. It never blocks.
	TryAcquire() bool

	// Release returns a slot to the pool and wakes the oldest waiter.
	// It panics if more slots are released than were acquired.
	Release()

	// Capacity returns the number of slots in the pool.
	Capacity() int

	// InUse returns the number of slots currently held.
	InUse() int

	// Available returns the number of free slots.
	Available() int

	// Waiting returns the number of callers blocked in Acquire.
	Waiting() int
}

// Config holds configuration options for creating a Pool.
type Config struct {
	// Capacity is the number of slots. Must be greater than 0.
	Capacity int
}

// slotPool implements Pool with a mutex and a FIFO list of waiters.
type slotPool struct {
	mu       sync.Mutex
	capacity int
	inUse    int
	waiters  []waiter
}

// waiter represents a goroutine blocked in Acquire.
type waiter struct {
	ready  chan struct{}   // closed when a slot has been handed over
	cancel <-chan struct{} // context cancellation channel
}

// New creates a pool with the given number of slots.
func New(capacity int) (Pool, error) {
	return NewWithConfig(Config{Capacity: capacity})
}

// NewWithConfig creates a pool from config.
func NewWithConfig(config Config) (Pool, error) {
	if config.Capacity <= 0 {
		return nil, errors.NewValidationError("workerpool", "capacity", config.Capacity, "capacity must be positive").
			WithHint("capacity determines how many task attempts may run at once")
	}

	return &slotPool{
		capacity: config.Capacity,
		waiters:  make([]waiter, 0),
	}, nil
}

// Do runs fn while holding a slot of p.
func Do(ctx context.Context, p Pool, fn func(ctx context.Context) error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()
	return fn(ctx)
}
