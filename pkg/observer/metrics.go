package observer

import (
	"context"

	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// Metrics returns an observer that counts lifecycle events into registry,
// labelled with the engine name. A nil registry uses metrics.DefaultRegistry.
func Metrics(registry *metrics.Registry, engine string) Observer {
	if registry == nil {
		registry = metrics.DefaultRegistry
	}
	return &metricsObserver{registry: registry, engine: engine}
}

type metricsObserver struct {
	registry *metrics.Registry
	engine   string
}

func (m *metricsObserver) observeDuration(outcome string, s task.Snapshot) {
	if d := s.Duration(); d > 0 {
		m.registry.TaskDuration.WithLabelValues(m.engine, outcome).Observe(d.Seconds())
	}
}

func (m *metricsObserver) OnStarted(_ context.Context, _ task.Snapshot) error {
	m.registry.TasksStarted.WithLabelValues(m.engine).Inc()
	return nil
}

func (m *metricsObserver) OnRetried(_ context.Context, _ task.Snapshot) error {
	m.registry.TasksRetried.WithLabelValues(m.engine).Inc()
	return nil
}

func (m *metricsObserver) OnCompleted(_ context.Context, s task.Snapshot) error {
	m.registry.TasksCompleted.WithLabelValues(m.engine).Inc()
	m.observeDuration("completed", s)
	return nil
}

func (m *metricsObserver) OnFailed(_ context.Context, s task.Snapshot) error {
	m.registry.TasksFailed.WithLabelValues(m.engine, s.ErrKind.String()).Inc()
	m.observeDuration("failed", s)
	return nil
}

func (m *metricsObserver) OnCancelled(_ context.Context, s task.Snapshot) error {
	m.registry.TasksCancelled.WithLabelValues(m.engine).Inc()
	m.observeDuration("cancelled", s)
	return nil
}
