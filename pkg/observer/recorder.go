package observer

import (
	"context"
	"sync"

	"github.com/vnykmshr/taskflow/pkg/task"
)

// Record is one delivered lifecycle event.
type Record struct {
	Event    Event
	Snapshot task.Snapshot
}

// Recorder keeps every event it receives, in delivery order.
// It is intended for tests and debugging.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) add(ev Event, snap task.Snapshot) error {
	r.mu.Lock()
	r.records = append(r.records, Record{Event: ev, Snapshot: snap})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) OnStarted(_ context.Context, s task.Snapshot) error {
	return r.add(EventStarted, s)
}

func (r *Recorder) OnRetried(_ context.Context, s task.Snapshot) error {
	return r.add(EventRetried, s)
}

func (r *Recorder) OnCompleted(_ context.Context, s task.Snapshot) error {
	return r.add(EventCompleted, s)
}

func (r *Recorder) OnFailed(_ context.Context, s task.Snapshot) error {
	return r.add(EventFailed, s)
}

func (r *Recorder) OnCancelled(_ context.Context, s task.Snapshot) error {
	return r.add(EventCancelled, s)
}

// Records returns a copy of everything recorded so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

// Events returns the sequence of events recorded for task id.
func (r *Recorder) Events(id string) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, rec := range r.records {
		if rec.Snapshot.ID == id {
			out = append(out, rec.Event)
		}
	}
	return out
}

// Last returns the most recent record for task id.
func (r *Recorder) Last(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.records) - 1; i >= 0; i-- {
		if r.records[i].Snapshot.ID == id {
			return r.records[i], true
		}
	}
	return Record{}, false
}

// Count returns how many times ev was recorded across all tasks.
func (r *Recorder) Count(ev Event) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, rec := range r.records {
		if rec.Event == ev {
			n++
		}
	}
	return n
}

// Reset discards all records.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.records = nil
	r.mu.Unlock()
}
