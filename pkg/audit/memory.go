package audit

import (
	"context"
	"sync"
)

// MemorySink keeps audit events in memory. Intended for tests and for
// deployments that only need audit events in logs.
type MemorySink struct {
	mu     sync.RWMutex
	events []*Event
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append persists one event.
func (m *MemorySink) Append(ctx context.Context, event *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *event
	m.events = append(m.events, &copied)
	return nil
}

// List returns up to limit events, newest first.
func (m *MemorySink) List(ctx context.Context, limit int) ([]*Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := len(m.events)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		copied := *m.events[i]
		out = append(out, &copied)
	}
	return out, nil
}

// Close releases nothing for the memory sink.
func (m *MemorySink) Close() error {
	return nil
}
