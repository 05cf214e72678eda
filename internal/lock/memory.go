// Package lock serialises sync runs per community. Memory covers a single
// process; Redis covers several replicas sharing one database.
package lock

import (
	"context"
	"sync"
)

// Memory is a keyed mutex. Waiting honours ctx.
type Memory struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string]chan struct{})}
}

func (m *Memory) Acquire(ctx context.Context, key string) (func(), error) {
	slot := m.slot(key)

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() { <-slot })
	}, nil
}

func (m *Memory) slot(key string) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[key]
	if !ok {
		slot = make(chan struct{}, 1)
		m.slots[key] = slot
	}
	return slot
}
