package session

import (
	"context"
	"sync"
)

// Memory is a process-local Bridge. It stands in for an LMS when the
// player runs standalone and doubles as the test backend.
//
// Thread-safety: Memory is safe for concurrent use via internal mutex.
type Memory struct {
	mu         sync.Mutex
	fields     *Fields
	active     bool
	terminated bool
	commits    int
}

// NewMemory creates an active bridge seeded with values.
func NewMemory(values map[string]string) *Memory {
	return &Memory{
		fields: NewFields(values),
		active: true,
	}
}

// IsActive implements Bridge.
func (m *Memory) IsActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// GetField implements Bridge.
func (m *Memory) GetField(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.active {
		return Sentinel
	}
	v, ok := m.fields.Get(name)
	if !ok {
		return Sentinel
	}
	return v
}

// SetField implements Bridge.
func (m *Memory) SetField(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminated {
		return ErrTerminated
	}
	if !m.active {
		return ErrNotActive
	}
	return m.fields.Set(name, value)
}

// Commit implements Bridge.
func (m *Memory) Commit(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.terminated {
		return ErrTerminated
	}
	if !m.active {
		return ErrNotActive
	}
	m.fields.MarkClean()
	m.commits++
	return nil
}

// Terminate implements Bridge.
func (m *Memory) Terminate(ctx context.Context) error {
	if err := m.Commit(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active = false
	m.terminated = true
	return nil
}

// Commits returns how many times Commit succeeded.
func (m *Memory) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Snapshot returns a copy of every field, including after Terminate.
func (m *Memory) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fields.Snapshot()
}
