package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/vnykmshr/taskflow/pkg/archive"
	"github.com/vnykmshr/taskflow/pkg/backoff"
	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/common/validation"
	"github.com/vnykmshr/taskflow/pkg/metrics"
	"github.com/vnykmshr/taskflow/pkg/observer"
	"github.com/vnykmshr/taskflow/pkg/scheduling/strategy"
	"github.com/vnykmshr/taskflow/pkg/scheduling/workerpool"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// State is the lifecycle state of an Engine.
type State int32

const (
	// Stopped engines accept no work. New engines start here.
	Stopped State = iota
	// Running engines accept and dispatch work.
	Running
	// Draining engines finish outstanding work but reject submissions.
	Draining
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Running:
		return "running"
	case Draining:
		return "draining"
	default:
		return "unknown"
	}
}

// Stats is a point-in-time view of engine counters.
type Stats struct {
	Submitted      uint64
	Attempts       uint64
	Retried        uint64
	Completed      uint64
	Failed         uint64
	Cancelled      uint64
	ObserverErrors uint64

	Pending int // waiting for dispatch
	Delayed int // waiting out a backoff delay
	Running int
}

// entry is the engine-side bookkeeping for one live task.
type entry struct {
	t *task.Task

	// cancel aborts the running attempt.
	cancel context.CancelFunc
	// timer re-enqueues the task after its backoff delay.
	timer *time.Timer
	// owned is set while an executor still has notifications to deliver
	// for a task that is no longer Running.
	owned bool
	// cancelRequested records a Cancel that the owning executor must apply.
	cancelRequested bool
}

// Engine schedules and executes tasks with bounded concurrency.
type Engine struct {
	name      string
	cfg       Config
	logger    *zap.Logger
	strategy  strategy.Strategy
	pool      workerpool.Pool
	observers []observer.Observer
	archive   archive.Archive
	registry  *metrics.Registry
	limiter   *rate.Limiter
	backoff   backoff.Policy
	clock     func() time.Time
	newID     func() string

	mu        sync.Mutex
	state     State
	started   bool
	aborted   bool
	tasks     map[string]*entry
	pending   []*task.Task
	delayed   int
	running   int
	seq       uint64
	stats     Stats
	idle      chan struct{}
	rateTimer *time.Timer

	observerErrors atomic.Uint64

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wake       chan struct{}
	quit       chan struct{}
	loopDone   chan struct{}
	stopped    chan struct{}
	workers    sync.WaitGroup
}

// New creates a stopped engine. Invalid configuration is reported as a
// *errors.ValidationError.
func New(cfg Config) (*Engine, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	policy, err := cfg.DefaultBackoff.Policy()
	if err != nil {
		return nil, err
	}

	pool, err := workerpool.NewWithMetrics(cfg.MaxWorkers, cfg.Name, cfg.Metrics)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		name:      cfg.Name,
		cfg:       cfg,
		logger:    cfg.Logger.With(zap.String("engine", cfg.Name)),
		strategy:  cfg.Strategy,
		pool:      pool,
		archive:   cfg.Archive,
		registry:  metrics.FromConfig(cfg.Metrics),
		backoff:   policy,
		clock:     cfg.Clock,
		newID:     cfg.IDGenerator,
		tasks:     make(map[string]*entry),
		idle:      make(chan struct{}),
		wake:      make(chan struct{}, 1),
		quit:      make(chan struct{}),
		loopDone:  make(chan struct{}),
		stopped:   make(chan struct{}),
		observers: append([]observer.Observer(nil), cfg.Observers...),
	}
	close(e.idle)

	if e.registry != nil {
		e.observers = append([]observer.Observer{observer.Metrics(e.registry, e.name)}, e.observers...)
	}
	if cfg.DispatchRate > 0 {
		e.limiter = rate.NewLimiter(cfg.DispatchRate, cfg.DispatchBurst)
	}
	return e, nil
}

// Start moves the engine from Stopped to Running and launches the dispatch
// loop. Values of ctx are visible to every attempt. Cancelling ctx stops
// the engine as Stop(0) would.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch {
	case e.state != Stopped:
		return ErrAlreadyRunning
	case e.started:
		return ErrEngineClosed
	}

	e.started = true
	e.state = Running
	e.baseCtx, e.baseCancel = context.WithCancel(context.WithoutCancel(ctx))

	go e.run()
	go func() {
		select {
		case <-ctx.Done():
			_ = e.Stop(0)
		case <-e.stopped:
		}
	}()

	e.logger.Info("engine started",
		zap.Int("max_workers", e.pool.Capacity()),
		zap.String("strategy", e.strategy.Name()))
	return nil
}

// Submit queues exec as a new task and returns its id.
func (e *Engine) Submit(exec task.Executable, opts ...SubmitOption) (string, error) {
	spec := Spec{Exec: exec}
	for _, opt := range opts {
		opt(&spec)
	}
	return e.SubmitTask(spec)
}

// SubmitTask queues the task described by spec and returns its id.
func (e *Engine) SubmitTask(spec Spec) (string, error) {
	t, err := e.build(spec)
	if err != nil {
		return "", err
	}

	e.mu.Lock()
	if e.state != Running {
		e.mu.Unlock()
		return "", ErrEngineClosed
	}
	if t.ID == "" {
		t.ID = e.newID()
	}
	if _, exists := e.tasks[t.ID]; exists {
		e.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
	}
	if spec.ID != "" {
		if _, err := e.archive.Get(t.ID); err == nil {
			e.mu.Unlock()
			return "", fmt.Errorf("%w: %s", ErrDuplicateID, t.ID)
		}
	}

	e.seq++
	t.Seq = e.seq
	t.CreatedAt = e.clock()

	if len(e.tasks) == 0 {
		e.idle = make(chan struct{})
	}
	e.tasks[t.ID] = &entry{t: t}
	e.pending = append(e.pending, t)
	e.stats.Submitted++
	if e.registry != nil {
		e.registry.TasksSubmitted.WithLabelValues(e.name).Inc()
	}
	e.updateGauges()
	e.mu.Unlock()

	e.logger.Debug("task submitted", zap.String("task_id", t.ID), zap.Int("priority", t.Priority))
	e.signal()
	return t.ID, nil
}

func (e *Engine) build(spec Spec) (*task.Task, error) {
	if spec.Exec == nil {
		return nil, tferrors.NewValidationError("engine", "exec", nil, "cannot be nil").
			WithHint("wrap a function with task.Func")
	}

	t := &task.Task{
		ID:          spec.ID,
		Priority:    spec.Priority,
		Class:       spec.Class,
		Exec:        spec.Exec,
		MaxAttempts: spec.MaxAttempts,
		Timeout:     spec.Timeout,
		Backoff:     e.backoff,
		Labels:      spec.Labels,
		State:       task.Pending,
	}
	if t.MaxAttempts == 0 {
		t.MaxAttempts = e.cfg.DefaultMaxAttempts
	}
	switch t.Timeout {
	case 0:
		t.Timeout = e.cfg.DefaultTimeout
	case NoTimeout:
		t.Timeout = 0
	}
	if err := validation.ValidatePositive("engine", "max_attempts", t.MaxAttempts); err != nil {
		return nil, err
	}
	if err := validation.ValidateNonNegativeDuration("engine", "timeout", t.Timeout); err != nil {
		return nil, err
	}

	switch {
	case spec.BackoffPolicy != nil:
		t.Backoff = spec.BackoffPolicy
	case spec.Backoff != nil:
		p, err := spec.Backoff.Policy()
		if err != nil {
			return nil, err
		}
		t.Backoff = p
	}
	return t, nil
}

// Cancel cancels the task with the given id. A pending or delayed task is
// cancelled immediately; a running attempt has its context cancelled and the
// task ends Cancelled once the attempt returns. Cancel reports false for
// unknown or terminal tasks and for tasks already being cancelled.
func (e *Engine) Cancel(id string) bool {
	e.mu.Lock()
	en, ok := e.tasks[id]
	if !ok || en.t.State.IsTerminal() || en.cancelRequested {
		e.mu.Unlock()
		return false
	}

	switch {
	case en.t.State == task.Running:
		en.cancelRequested = true
		if en.cancel != nil {
			en.cancel()
		}
		e.mu.Unlock()
		e.logger.Debug("running task cancellation requested", zap.String("task_id", id))
		return true

	case en.owned:
		en.cancelRequested = true
		e.mu.Unlock()
		return true
	}

	snap := e.cancelPendingLocked(en)
	e.updateGauges()
	e.mu.Unlock()

	e.logger.Debug("task cancelled", zap.String("task_id", id))
	e.notify(observer.EventCancelled, snap)
	e.retire(snap)
	return true
}

// cancelPendingLocked moves a pending or delayed task to Cancelled.
// Must be called with e.mu held.
func (e *Engine) cancelPendingLocked(en *entry) task.Snapshot {
	if en.timer != nil {
		en.timer.Stop()
		en.timer = nil
		e.delayed--
	} else {
		e.removePending(en.t)
	}

	t := en.t
	_ = t.Transition(task.Cancelled)
	t.CompletedAt = e.clock()
	if t.CompletedAt.Before(t.StartedAt) {
		t.CompletedAt = t.StartedAt
	}
	t.Err = &task.Error{Kind: task.KindCancelled, Err: context.Canceled}
	e.stats.Cancelled++
	return t.Snapshot()
}

func (e *Engine) removePending(t *task.Task) {
	for i, p := range e.pending {
		if p == t {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// Status returns the state of task id, consulting the archive for retired tasks.
func (e *Engine) Status(id string) (task.State, error) {
	snap, err := e.Snapshot(id)
	if err != nil {
		return task.Pending, err
	}
	return snap.State, nil
}

// Snapshot returns a copy of task id.
func (e *Engine) Snapshot(id string) (task.Snapshot, error) {
	e.mu.Lock()
	if en, ok := e.tasks[id]; ok {
		snap := en.t.Snapshot()
		e.mu.Unlock()
		return snap, nil
	}
	e.mu.Unlock()

	snap, err := e.archive.Get(id)
	if err != nil {
		if errors.Is(err, tferrors.ErrNotFound) {
			return task.Snapshot{}, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
		}
		return task.Snapshot{}, err
	}
	return snap, nil
}

// State returns the engine lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Stats returns a snapshot of engine counters.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	s := e.stats
	s.Pending = len(e.pending)
	s.Delayed = e.delayed
	s.Running = e.running
	e.mu.Unlock()

	s.ObserverErrors = e.observerErrors.Load()
	return s
}

// Wait blocks until every submitted task has reached a terminal state and
// been retired, or ctx is done. It does not prevent new submissions.
func (e *Engine) Wait(ctx context.Context) error {
	e.mu.Lock()
	idle := e.idle
	e.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop stops accepting submissions and drains outstanding work for at most
// drainTimeout. When the deadline passes, pending and delayed tasks are
// cancelled and running attempts have their contexts cancelled; Stop then
// waits for those attempts to return and reports ErrDrainTimeout.
// Stop(0) cancels outstanding work immediately. Stop on a stopped engine
// returns nil; concurrent callers all wait for the same shutdown.
func (e *Engine) Stop(drainTimeout time.Duration) error {
	e.mu.Lock()
	switch e.state {
	case Stopped:
		e.mu.Unlock()
		return nil
	case Draining:
		e.mu.Unlock()
		<-e.stopped
		return nil
	}
	e.state = Draining
	idle := e.idle
	e.mu.Unlock()

	e.logger.Info("engine draining", zap.Duration("drain_timeout", drainTimeout))
	e.signal()

	timedOut := false
	if drainTimeout > 0 {
		timer := time.NewTimer(drainTimeout)
		select {
		case <-idle:
		case <-timer.C:
			timedOut = true
		}
		timer.Stop()
	} else {
		select {
		case <-idle:
		default:
			timedOut = true
		}
	}

	if timedOut {
		e.abort()
		e.mu.Lock()
		idle = e.idle
		e.mu.Unlock()
		<-idle
	}

	close(e.quit)
	<-e.loopDone
	e.workers.Wait()

	e.mu.Lock()
	e.state = Stopped
	if e.rateTimer != nil {
		e.rateTimer.Stop()
	}
	e.mu.Unlock()
	e.baseCancel()
	close(e.stopped)

	e.logger.Info("engine stopped", zap.Bool("drain_timed_out", timedOut))
	if timedOut {
		return ErrDrainTimeout
	}
	return nil
}

// abort cancels every outstanding task. Running attempts are cancelled
// through their context and finish in their executor.
func (e *Engine) abort() {
	e.mu.Lock()
	e.aborted = true

	var snaps []task.Snapshot
	for _, en := range e.tasks {
		switch {
		case en.t.State.IsTerminal() || en.cancelRequested:
		case en.t.State == task.Running:
			en.cancelRequested = true
			if en.cancel != nil {
				en.cancel()
			}
		case en.owned:
			en.cancelRequested = true
		default:
			snaps = append(snaps, e.cancelPendingLocked(en))
		}
	}
	e.updateGauges()
	e.mu.Unlock()

	if len(snaps) > 0 {
		e.logger.Warn("drain deadline reached, cancelling pending tasks", zap.Int("count", len(snaps)))
	}
	for _, snap := range snaps {
		e.notify(observer.EventCancelled, snap)
		e.retire(snap)
	}
}

// retire archives a terminal task and removes it from the live table.
func (e *Engine) retire(snap task.Snapshot) {
	if err := e.archive.Put(snap); err != nil {
		e.logger.Error("failed to archive task", zap.String("task_id", snap.ID), zap.Error(err))
	}

	e.mu.Lock()
	if _, ok := e.tasks[snap.ID]; ok {
		delete(e.tasks, snap.ID)
		if len(e.tasks) == 0 {
			close(e.idle)
		}
	}
	e.mu.Unlock()
}

// notify delivers ev to every observer. Failures are logged and counted.
func (e *Engine) notify(ev observer.Event, snap task.Snapshot) {
	for _, o := range e.observers {
		err := observer.Notify(e.baseCtx, o, ev, snap)
		if err == nil {
			continue
		}

		e.observerErrors.Add(1)
		if e.registry != nil {
			e.registry.ObserverErrors.WithLabelValues(e.name, ev.String()).Inc()
		}

		fields := []zap.Field{
			zap.String("task_id", snap.ID),
			zap.Stringer("event", ev),
			zap.Error(err),
		}
		var oerr *observer.Error
		if errors.As(err, &oerr) && oerr.Panicked {
			fields = append(fields, zap.ByteString("stack", oerr.Stack))
		}
		e.logger.Error("observer failed", fields...)
	}
}

// signal wakes the dispatch loop without blocking.
func (e *Engine) signal() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// updateGauges must be called with e.mu held.
func (e *Engine) updateGauges() {
	if e.registry == nil {
		return
	}
	e.registry.TasksPending.WithLabelValues(e.name).Set(float64(len(e.pending) + e.delayed))
	e.registry.TasksRunning.WithLabelValues(e.name).Set(float64(e.running))
}
