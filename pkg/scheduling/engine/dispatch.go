package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	tfcontext "github.com/vnykmshr/taskflow/pkg/common/context"
	"github.com/vnykmshr/taskflow/pkg/observer"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// run is the dispatch loop. It exits when Stop closes e.quit.
func (e *Engine) run() {
	defer close(e.loopDone)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()

	for {
		e.dispatchReady()

		select {
		case <-e.quit:
			return
		case <-e.wake:
		case <-ticker.C:
		}
	}
}

// dispatchReady starts as many attempts as free slots and the strategy allow.
func (e *Engine) dispatchReady() {
	for {
		en, attemptCtx, snap, ok := e.next()
		if !ok {
			return
		}

		e.workers.Add(1)
		go e.execute(en, attemptCtx, snap)
	}
}

// next selects a task, removes it from the pending set and takes a worker
// slot, all under e.mu, then marks the task Running.
func (e *Engine) next() (*entry, context.Context, task.Snapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.aborted || (e.state != Running && e.state != Draining) {
		return nil, nil, task.Snapshot{}, false
	}

	idx := e.strategy.Select(e.pending)
	if idx < 0 || idx >= len(e.pending) {
		return nil, nil, task.Snapshot{}, false
	}

	// Slot before rate token: a busy pool must not consume tokens.
	if !e.pool.TryAcquire() {
		return nil, nil, task.Snapshot{}, false
	}

	if e.limiter != nil {
		now := time.Now()
		r := e.limiter.ReserveN(now, 1)
		if delay := r.DelayFrom(now); delay > 0 {
			r.CancelAt(now)
			e.pool.Release()
			e.wakeAfterLocked(delay)
			return nil, nil, task.Snapshot{}, false
		}
	}

	t := e.pending[idx]
	e.pending = append(e.pending[:idx], e.pending[idx+1:]...)
	en := e.tasks[t.ID]

	_ = t.Transition(task.Running)
	t.Attempts++
	t.StartedAt = e.clock()
	if t.StartedAt.Before(t.CreatedAt) {
		t.StartedAt = t.CreatedAt
	}

	ctx, cancel := context.WithCancel(e.baseCtx)
	en.cancel = cancel
	e.running++
	e.stats.Attempts++
	e.updateGauges()

	return en, ctx, t.Snapshot(), true
}

// wakeAfterLocked schedules a dispatch wake-up once the rate limiter has a
// token again. Must be called with e.mu held.
func (e *Engine) wakeAfterLocked(d time.Duration) {
	if e.rateTimer == nil {
		e.rateTimer = time.AfterFunc(d, e.signal)
		return
	}
	e.rateTimer.Reset(d)
}

// execute runs one attempt of en and records its outcome.
func (e *Engine) execute(en *entry, ctx context.Context, snap task.Snapshot) {
	defer e.workers.Done()

	e.logger.Debug("attempt started",
		zap.String("task_id", snap.ID),
		zap.Int("attempt", snap.Attempts),
		zap.Int("max_attempts", snap.MaxAttempts))
	if snap.Attempts == 1 {
		e.notify(observer.EventStarted, snap)
	}

	result, err := e.invoke(ctx, en.t.Exec, snap.Timeout)
	e.complete(en, result, err)
}

// invoke calls exec under the per-attempt deadline. Panics are converted to
// KindPanic errors, and any return after the deadline counts as a timeout.
func (e *Engine) invoke(ctx context.Context, exec task.Executable, timeout time.Duration) (result any, err error) {
	attemptCtx, cancel := tfcontext.WithOptionalTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = &task.Error{
				Kind: task.KindPanic,
				Err:  fmt.Errorf("task panicked: %v\nStack trace:\n%s", r, debug.Stack()),
			}
		}
	}()

	result, err = exec.Execute(attemptCtx)

	if tfcontext.IsTimedOut(attemptCtx) && !tfcontext.IsCanceled(ctx) {
		if err == nil {
			err = context.DeadlineExceeded
		}
		var terr *task.Error
		if !errors.As(err, &terr) || terr.Kind != task.KindTimeout {
			err = &task.Error{Kind: task.KindTimeout, Err: err}
		}
		result = nil
	}
	return result, err
}

// complete classifies the outcome of an attempt, notifies observers and
// either retires the task or arms its retry timer.
func (e *Engine) complete(en *entry, result any, err error) {
	e.mu.Lock()
	t := en.t
	cancel := en.cancel
	en.cancel = nil
	e.running--

	var ev observer.Event
	switch {
	case en.cancelRequested:
		ev = observer.EventCancelled
		if err == nil {
			err = context.Canceled
		}
		t.Err = &task.Error{Kind: task.KindCancelled, Err: err}
		_ = t.Transition(task.Cancelled)
		e.stats.Cancelled++

	case err == nil:
		ev = observer.EventCompleted
		t.Result = result
		t.Err = nil
		_ = t.Transition(task.Completed)
		e.stats.Completed++

	case task.KindOf(err).Retryable() && t.Attempts < t.MaxAttempts && !e.aborted:
		ev = observer.EventRetried
		t.Err = err
		_ = t.Transition(task.Pending)
		en.owned = true
		e.stats.Retried++

	default:
		ev = observer.EventFailed
		t.Err = err
		_ = t.Transition(task.Failed)
		e.stats.Failed++
	}

	if ev.Terminal() {
		t.CompletedAt = e.clock()
		if t.CompletedAt.Before(t.StartedAt) {
			t.CompletedAt = t.StartedAt
		}
	}
	snap := t.Snapshot()
	e.updateGauges()
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	switch ev {
	case observer.EventRetried:
		e.logger.Debug("attempt failed, will retry",
			zap.String("task_id", snap.ID),
			zap.Int("attempt", snap.Attempts),
			zap.Stringer("kind", snap.ErrKind),
			zap.Error(err))
	case observer.EventFailed:
		e.logger.Debug("task failed",
			zap.String("task_id", snap.ID),
			zap.Int("attempts", snap.Attempts),
			zap.Stringer("kind", snap.ErrKind),
			zap.Error(err))
	}

	e.notify(ev, snap)

	if ev == observer.EventRetried {
		e.scheduleRetry(en)
	} else {
		e.retire(snap)
	}

	e.pool.Release()
	e.signal()
}

// scheduleRetry arms the timer that puts en back into the pending set after
// its backoff delay, unless the task was cancelled while observers ran.
func (e *Engine) scheduleRetry(en *entry) {
	e.mu.Lock()
	en.owned = false

	if en.cancelRequested || e.aborted {
		if !en.cancelRequested {
			en.cancelRequested = true
		}
		snap := e.cancelOwnedLocked(en)
		e.updateGauges()
		e.mu.Unlock()

		e.notify(observer.EventCancelled, snap)
		e.retire(snap)
		return
	}

	delay := en.t.Backoff.NextDelay(en.t.Attempts)
	e.delayed++
	en.timer = time.AfterFunc(delay, func() { e.requeue(en) })
	e.updateGauges()
	e.mu.Unlock()

	e.logger.Debug("retry scheduled",
		zap.String("task_id", en.t.ID),
		zap.Int("next_attempt", en.t.Attempts+1),
		zap.Duration("delay", delay))
}

// cancelOwnedLocked cancels a task that is Pending but neither queued nor
// delayed. Must be called with e.mu held.
func (e *Engine) cancelOwnedLocked(en *entry) task.Snapshot {
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

// requeue moves a delayed task back into the pending set.
func (e *Engine) requeue(en *entry) {
	e.mu.Lock()
	if en.timer == nil {
		// Cancelled or aborted after the timer fired.
		e.mu.Unlock()
		return
	}
	en.timer = nil
	e.delayed--
	e.pending = append(e.pending, en.t)
	e.updateGauges()
	e.mu.Unlock()

	e.signal()
}
