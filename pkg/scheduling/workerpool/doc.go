/*
Package workerpool provides the counting slot pool that bounds how many task
attempts run at once.

A Pool hands out at most Capacity slots. A caller holds a slot for exactly
one unit of work and returns it with Release:

	pool, err := workerpool.New(4)
	if err != nil {
		return err
	}

	if err := pool.Acquire(ctx); err != nil {
		return err // ctx was cancelled while waiting
	}
	defer pool.Release()

Do wraps the acquire/release pair around a function:

	err := workerpool.Do(ctx, pool, func(ctx context.Context) error {
		return process(ctx)
	})

Acquire and TryAcquire:

Acquire blocks until a slot is free or the context is done. Waiters are
served in arrival order. A cancelled Acquire never holds a slot and leaves
no entry behind, even when a slot is handed over at the moment of
cancellation.

TryAcquire never blocks. The engine's dispatch loop uses it while holding
its own lock, so choosing a task, removing it from the pending set and
taking a slot happen as one step.

Release panics when called more times than slots were acquired, which
always indicates a bookkeeping bug in the caller.

Metrics:

NewWithMetrics wraps a pool and exports its capacity, held slots, blocked
callers and wait time through the metrics package:

	pool, err := workerpool.NewWithMetrics(8, "engine", metrics.Config{Enabled: true})

Thread Safety:

All methods are safe for concurrent use.
*/
package workerpool
