package workerpool

import (
	"context"
	"time"

	"github.com/vnykmshr/taskflow/pkg/metrics"
)

// MetricsPool wraps a Pool with Prometheus metrics collection.
type MetricsPool struct {
	pool     Pool
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a pool that reports its size, held slots,
// blocked callers and wait time. A disabled metricsConfig yields the plain pool.
func NewWithMetrics(capacity int, name string, metricsConfig metrics.Config) (Pool, error) {
	return NewWithConfigAndMetrics(Config{Capacity: capacity}, name, metricsConfig)
}

// NewWithConfigAndMetrics creates a pool with custom config and metrics.
func NewWithConfigAndMetrics(config Config, name string, metricsConfig metrics.Config) (Pool, error) {
	basePool, err := NewWithConfig(config)
	if err != nil {
		return nil, err
	}

	registry := metrics.FromConfig(metricsConfig)
	if registry == nil {
		return basePool, nil
	}

	mp := &MetricsPool{
		pool:     basePool,
		name:     name,
		registry: registry,
	}
	mp.registry.WorkerPoolSize.WithLabelValues(name).Set(float64(basePool.Capacity()))
	mp.updateMetrics()

	return mp, nil
}

// updateMetrics updates the current state metrics.
func (mp *MetricsPool) updateMetrics() {
	mp.registry.WorkerPoolActive.WithLabelValues(mp.name).Set(float64(mp.pool.InUse()))
	mp.registry.WorkerPoolWaiting.WithLabelValues(mp.name).Set(float64(mp.pool.Waiting()))
}

// Acquire blocks until a slot is available, recording the wait.
func (mp *MetricsPool) Acquire(ctx context.Context) error {
	start := time.Now()

	mp.registry.WorkerPoolWaiting.WithLabelValues(mp.name).Inc()
	err := mp.pool.Acquire(ctx)
	mp.registry.WorkerPoolWaitTime.WithLabelValues(mp.name).Observe(time.Since(start).Seconds())

	mp.updateMetrics()
	return err
}

// TryAcquire takes a slot without blocking.
func (mp *MetricsPool) TryAcquire() bool {
	ok := mp.pool.TryAcquire()
	if ok {
		mp.updateMetrics()
	}
	return ok
}

// Release returns a slot to the pool.
func (mp *MetricsPool) Release() {
	mp.pool.Release()
	mp.updateMetrics()
}

// Capacity returns the number of slots in the pool.
func (mp *MetricsPool) Capacity() int { return mp.pool.Capacity() }

// InUse returns the number of slots currently held.
func (mp *MetricsPool) InUse() int { return mp.pool.InUse() }

// Available returns the number of free slots.
func (mp *MetricsPool) Available() int { return mp.pool.Available() }

// Waiting returns the number of callers blocked in Acquire.
func (mp *MetricsPool) Waiting() int { return mp.pool.Waiting() }
