/*
Package taskflow provides an asynchronous task engine for Go applications:
prioritized dispatch onto a bounded set of workers, retries with backoff,
per-attempt timeouts, lifecycle observers and coordinated shutdown.

Task Scheduling (pkg/scheduling):
  - engine: Submit, cancel, inspect and drain tasks
  - strategy: Priority, FIFO and shortest-job-first dispatch order
  - workerpool: Bounded slots for concurrent attempts
  - scheduler: Cron, interval and one-shot front-end for the engine

Tasks and Retries:
  - task: Task model, states and failure classification
  - backoff: Fixed, linear, exponential and jittered retry delays

Observability:
  - observer: Logging (zap), tracing (OpenTelemetry), metrics and Redis mirroring
  - metrics: Prometheus collectors for engines, pools and schedulers

Persistence (pkg/archive):
  - Memory: bounded in-process history of retired tasks
  - Bolt: bbolt-backed history that survives restarts

Example usage:

	import (
		"github.com/vnykmshr/taskflow/pkg/scheduling/engine"
		"github.com/vnykmshr/taskflow/pkg/task"
	)

	eng, _ := engine.New(engine.Config{MaxWorkers: 4})
	eng.Start(ctx)
	defer eng.Stop(10 * time.Second)

	id, _ := eng.Submit(task.Func(fetch), engine.WithPriority(5))
*/
package taskflow
