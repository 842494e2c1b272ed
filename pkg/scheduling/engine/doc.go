/*
Package engine implements the asynchronous task engine: a pending set
ordered by a pluggable strategy, a bounded pool of worker slots, retries with
backoff, per-attempt timeouts, lifecycle observers and coordinated shutdown.

Basic usage:

	eng, err := engine.New(engine.Config{
		MaxWorkers: 4,
		Strategy:   strategy.Priority{},
		Observers:  []observer.Observer{observer.Logging(logger)},
	})
	if err != nil {
		return err
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}
	defer eng.Stop(10 * time.Second)

	id, err := eng.Submit(task.Func(func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}), engine.WithPriority(5), engine.WithTimeout(2*time.Second))

Lifecycle:

An engine moves Stopped -> Running -> Draining -> Stopped and is not
restartable. Submit succeeds only while Running. Stop rejects further
submissions, keeps dispatching until every task is terminal or the drain
timeout passes, then cancels whatever is left.

Dispatch:

A single goroutine selects the next task with the Strategy, removes it from
the pending set and takes a worker slot with TryAcquire, all under the
engine lock. It sleeps on a wake signal (submit, slot release, retry,
cancel) or the poll interval. An optional rate limit bounds how many
attempts start per second.

Outcomes:

  - success: Completed
  - recoverable error or timeout with attempts left: Retried, then back to
    the pending set after Backoff.NextDelay(attempt)
  - recoverable error or timeout on the last attempt: Failed
  - fatal error or panic: Failed immediately
  - Cancel or shutdown: Cancelled

Plain errors are recoverable. Wrap with task.Fatal to stop retries.

Observers:

Observers run synchronously on engine goroutines, in the per-task order
Started, (Retried)*, Completed|Failed|Cancelled. Started is sent once,
for the first attempt. Their errors and
panics are logged, counted in Stats.ObserverErrors and otherwise ignored.

Retired tasks:

Terminal tasks are written to the configured archive and dropped from the
live table. Status and Snapshot fall back to the archive.
*/
package engine
