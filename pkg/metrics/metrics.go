// Package metrics provides Prometheus instrumentation for taskflow components.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for taskflow components.
type Registry struct {
	// Engine Metrics
	TasksSubmitted *prometheus.CounterVec
	TasksStarted   *prometheus.CounterVec
	TasksRetried   *prometheus.CounterVec
	TasksCompleted *prometheus.CounterVec
	TasksFailed    *prometheus.CounterVec
	TasksCancelled *prometheus.CounterVec
	TaskDuration   *prometheus.HistogramVec
	TasksPending   *prometheus.GaugeVec
	TasksRunning   *prometheus.GaugeVec
	ObserverErrors *prometheus.CounterVec

	// Worker Pool Metrics
	WorkerPoolSize     *prometheus.GaugeVec
	WorkerPoolActive   *prometheus.GaugeVec
	WorkerPoolWaiting  *prometheus.GaugeVec
	WorkerPoolWaitTime *prometheus.HistogramVec

	// Scheduler Metrics
	ScheduledJobs  *prometheus.GaugeVec
	ScheduleFires  *prometheus.CounterVec
	ScheduleMisses *prometheus.CounterVec
}

// DefaultRegistry is the default metrics registry used by taskflow components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer
// and the default namespace.
func NewRegistry(reg prometheus.Registerer) *Registry {
	return newRegistry(reg, DefaultNamespace, nil)
}

// FromConfig returns the registry described by config, or nil when metrics
// are disabled. Registries are shared per registerer, namespace and label
// set, so components configured alike report into the same collectors
// instead of registering them twice.
func FromConfig(config Config) *Registry {
	if !config.Enabled {
		return nil
	}

	reg := config.Registry
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	namespace := config.Namespace
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if reg == prometheus.DefaultRegisterer && namespace == DefaultNamespace && len(config.Labels) == 0 {
		return DefaultRegistry
	}

	key := registryKey{reg: reg, namespace: namespace, labels: labelKey(config.Labels)}

	sharedMu.Lock()
	defer sharedMu.Unlock()

	if r, ok := shared[key]; ok {
		return r
	}
	r := newRegistry(reg, namespace, config.Labels)
	shared[key] = r
	return r
}

type registryKey struct {
	reg       prometheus.Registerer
	namespace string
	labels    string
}

var (
	sharedMu sync.Mutex
	shared   = make(map[registryKey]*Registry)
)

func labelKey(labels prometheus.Labels) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(labels[k])
		b.WriteByte(',')
	}
	return b.String()
}

func newRegistry(reg prometheus.Registerer, namespace string, labels prometheus.Labels) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Engine Metrics
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_submitted_total",
				Help:        "Total number of tasks accepted by the engine",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		TasksStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_started_total",
				Help:        "Total number of tasks that began their first attempt",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		TasksRetried: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_retried_total",
				Help:        "Total number of failed attempts scheduled for retry",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_completed_total",
				Help:        "Total number of tasks completed successfully",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_failed_total",
				Help:        "Total number of tasks that ended in failure",
				ConstLabels: labels,
			},
			[]string{"engine", "kind"},
		),

		TasksCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_cancelled_total",
				Help:        "Total number of tasks cancelled",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		TaskDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "task_duration_seconds",
				Help:        "Duration of the final attempt of a finished task",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"engine", "outcome"},
		),

		TasksPending: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_pending",
				Help:        "Number of tasks waiting for dispatch, including backoff",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		TasksRunning: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "tasks_running",
				Help:        "Number of tasks currently executing",
				ConstLabels: labels,
			},
			[]string{"engine"},
		),

		ObserverErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "engine",
				Name:        "observer_errors_total",
				Help:        "Total number of observer hooks that failed or panicked",
				ConstLabels: labels,
			},
			[]string{"engine", "event"},
		),

		// Worker Pool Metrics
		WorkerPoolSize: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "size",
				Help:        "Worker pool capacity",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "active_slots",
				Help:        "Number of slots currently held",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "waiting",
				Help:        "Number of callers blocked waiting for a slot",
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		WorkerPoolWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   namespace,
				Subsystem:   "workerpool",
				Name:        "wait_duration_seconds",
				Help:        "Time spent waiting for a slot",
				Buckets:     prometheus.DefBuckets,
				ConstLabels: labels,
			},
			[]string{"pool_name"},
		),

		// Scheduler Metrics
		ScheduledJobs: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "jobs",
				Help:        "Number of registered schedules",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		ScheduleFires: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "fires_total",
				Help:        "Total number of schedule firings submitted to the engine",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),

		ScheduleMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   namespace,
				Subsystem:   "scheduler",
				Name:        "submit_errors_total",
				Help:        "Total number of schedule firings the engine rejected",
				ConstLabels: labels,
			},
			[]string{"scheduler_name"},
		),
	}
}
