package workerpool

import (
	"context"
)

// TryAcquire takes a slot without blocking.
func (p *slotPool) TryAcquire() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Queued waiters are served first.
	if p.inUse < p.capacity && len(p.waiters) == 0 {
		p.inUse++
		return true
	}
	return false
}

// Acquire blocks until a slot is available.
func (p *slotPool) Acquire(ctx context.Context) error {
	// Check if context is already canceled
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	p.mu.Lock()

	// Fast path: slot available immediately
	if p.inUse < p.capacity && len(p.waiters) == 0 {
		p.inUse++
		p.mu.Unlock()
		return nil
	}

	// Slow path: need to wait
	ready := make(chan struct{})
	p.waiters = append(p.waiters, waiter{ready: ready, cancel: ctx.Done()})
	p.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		if !p.removeWaiter(ready) {
			// A slot was handed over while we were giving up.
			p.Release()
		}
		return ctx.Err()
	}
}

// Release returns a slot to the pool.
func (p *slotPool) Release() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.inUse <= 0 {
		panic("workerpool: released more slots than acquired")
	}

	p.inUse--
	p.notifyWaiters()
}

// Capacity returns the number of slots in the pool.
func (p *slotPool) Capacity() int {
	return p.capacity
}

// InUse returns the number of slots currently held.
func (p *slotPool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.inUse
}

// Available returns the number of free slots.
func (p *slotPool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.capacity - p.inUse
}

// Waiting returns the number of callers blocked in Acquire.
func (p *slotPool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waiters)
}

// notifyWaiters hands free slots to waiters in arrival order.
// Must be called with p.mu held.
func (p *slotPool) notifyWaiters() {
	i := 0
	for ; i < len(p.waiters) && p.inUse < p.capacity; i++ {
		w := p.waiters[i]

		// Skip canceled waiters; they remove themselves
		select {
		case <-w.cancel:
			continue
		default:
		}

		p.inUse++
		close(w.ready)
	}
	p.waiters = append(p.waiters[:0:0], p.waiters[i:]...)
}

// removeWaiter removes a waiter from the list. It reports false when the
// waiter was already served or dropped.
func (p *slotPool) removeWaiter(ready chan struct{}) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, w := range p.waiters {
		if w.ready == ready {
			p.waiters = append(p.waiters[:i], p.waiters[i+1:]...)
			return true
		}
	}

	select {
	case <-ready:
		return false
	default:
		return true
	}
}
