// Package observer defines the lifecycle notification interface of the
// engine and a set of ready-made observers.
//
// An Observer is told when a task attempt starts, when a failed attempt is
// scheduled for retry, and when the task reaches Completed, Failed or
// Cancelled. Each hook receives an immutable task.Snapshot.
//
// Provided observers:
//   - Funcs and Nop for ad-hoc hooks
//   - Multi to fan out to several observers
//   - Recorder to capture events in tests
//   - Logging for structured zap logs
//   - Tracing for one OpenTelemetry span per task
//   - Metrics for Prometheus counters and histograms
//   - RedisObserver to mirror task state into Redis
//
// Hook failures never affect task outcomes. Notify turns a returned error or
// a panic into an *Error so the caller can log and count it.
package observer
