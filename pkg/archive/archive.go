// Package archive stores snapshots of tasks that reached a terminal state.
//
// The engine retires a task into its Archive after the terminal observer
// notification, which keeps the live task table small while Status can
// still answer for finished tasks.
package archive

import (
	"fmt"
	"sync"

	tferrors "github.com/vnykmshr/taskflow/pkg/common/errors"
	"github.com/vnykmshr/taskflow/pkg/task"
)

// Archive stores terminal task snapshots by id.
type Archive interface {
	// Put stores snap, replacing any earlier snapshot with the same id.
	Put(snap task.Snapshot) error

	// Get returns the snapshot for id, or an error matching
	// errors.ErrNotFound.
	Get(id string) (task.Snapshot, error)

	// Len returns the number of stored snapshots.
	Len() int

	// Close releases resources held by the archive.
	Close() error
}

func notFound(id string) error {
	return fmt.Errorf("archive: task %s: %w", id, tferrors.ErrNotFound)
}

// Memory is an in-memory Archive. With a positive limit it keeps only the
// most recently stored snapshots.
type Memory struct {
	mu      sync.RWMutex
	limit   int
	entries map[string]task.Snapshot
	order   []string
}

// NewMemory returns an in-memory archive. limit <= 0 means unbounded.
func NewMemory(limit int) *Memory {
	return &Memory{
		limit:   limit,
		entries: make(map[string]task.Snapshot),
	}
}

// Put implements Archive.
func (m *Memory) Put(snap task.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[snap.ID]; !exists {
		m.order = append(m.order, snap.ID)
	}
	m.entries[snap.ID] = snap

	for m.limit > 0 && len(m.order) > m.limit {
		oldest := m.order[0]
		m.order = m.order[1:]
		delete(m.entries, oldest)
	}
	return nil
}

// Get implements Archive.
func (m *Memory) Get(id string) (task.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap, ok := m.entries[id]
	if !ok {
		return task.Snapshot{}, notFound(id)
	}
	return snap, nil
}

// Len implements Archive.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Close implements Archive.
func (m *Memory) Close() error { return nil }
