// Package metrics provides Prometheus instrumentation for taskflow components.
//
// The engine, the worker pool and the cron scheduler all report into a
// Registry of collectors created through promauto.
//
// # Overview
//
// The metrics package provides instrumentation for:
//   - Task lifecycle (submitted, started, retried, completed, failed, cancelled)
//   - Engine load (pending and running tasks, observer failures)
//   - Worker pools (capacity, held slots, blocked callers, wait time)
//   - Schedules (registered jobs, firings, rejected firings)
//
// # Quick Start
//
// Enable metrics through the component configuration:
//
//	eng, err := engine.New(engine.Config{
//		MaxWorkers: 8,
//		Metrics:    metrics.Config{Enabled: true},
//	})
//
// Then expose metrics via HTTP:
//
//	http.Handle("/metrics", promhttp.Handler())
//	log.Fatal(http.ListenAndServe(":8080", nil))
//
// # Custom Registry
//
// Use a custom Prometheus registry for isolation:
//
//	registry := prometheus.NewRegistry()
//	config := metrics.Config{
//		Enabled:  true,
//		Registry: registry,
//	}
//	pool, err := workerpool.NewWithMetrics(4, "io", config)
//
// FromConfig shares one Registry per registerer, namespace and label set,
// so an engine and its worker pool can be given the same Config.
//
// # Available Metrics
//
// ## Engine Metrics
//
//   - taskflow_engine_tasks_submitted_total
//   - taskflow_engine_tasks_started_total
//   - taskflow_engine_tasks_retried_total
//   - taskflow_engine_tasks_completed_total
//   - taskflow_engine_tasks_failed_total (label kind)
//   - taskflow_engine_tasks_cancelled_total
//   - taskflow_engine_task_duration_seconds (label outcome)
//   - taskflow_engine_tasks_pending
//   - taskflow_engine_tasks_running
//   - taskflow_engine_observer_errors_total (label event)
//
// ## Worker Pool Metrics
//
//   - taskflow_workerpool_size
//   - taskflow_workerpool_active_slots
//   - taskflow_workerpool_waiting
//   - taskflow_workerpool_wait_duration_seconds
//
// ## Scheduler Metrics
//
//   - taskflow_scheduler_jobs
//   - taskflow_scheduler_fires_total
//   - taskflow_scheduler_submit_errors_total
//
// # Labels
//
//   - engine: Config.Name of the engine instance
//   - pool_name: User-provided name for the worker pool instance
//   - scheduler_name: User-provided name for the scheduler instance
//   - kind: failure classification ("fatal", "recoverable", "timeout", "panic")
//   - outcome: terminal state ("completed", "failed", "cancelled")
//   - event: observer hook that failed ("started", "retried", ...)
//
// # Configuration
//
//	config := metrics.Config{
//		Enabled:   true,                                // Enable/disable metrics
//		Registry:  prometheus.DefaultRegisterer,        // Custom registry
//		Namespace: "myapp",                             // Override default "taskflow"
//		Labels:    prometheus.Labels{"version": "1.0"}, // Additional labels
//	}
//
// # Performance
//
// Metrics are updated only when operations occur. There are no background
// goroutines or timers.
package metrics
