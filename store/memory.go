package store

import (
	"context"
	"sync"
)

// Memory is an in-process [Store]. State does not survive a restart; it is
// the default backend for tests and throwaway sessions.
type Memory struct {
	mu  sync.RWMutex
	rec *Record
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

// Get implements [Store].
func (m *Memory) Get(_ context.Context) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.rec == nil {
		return nil, ErrNotFound
	}
	return m.rec.Clone(), nil
}

// Put implements [Store].
func (m *Memory) Put(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	m.mu.Lock()
	m.rec = rec.Clone()
	m.mu.Unlock()
	return nil
}

// Clear implements [Store].
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	m.rec = nil
	m.mu.Unlock()
	return nil
}
