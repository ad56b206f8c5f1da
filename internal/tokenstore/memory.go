package tokenstore

import (
	"context"
	"sync"
)

// MemoryStore keeps the session in process memory
type MemoryStore struct {
	mu      sync.Mutex
	session *Session
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Load implements Store
func (m *MemoryStore) Load(ctx context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

// Save implements Store
func (m *MemoryStore) Save(ctx context.Context, session Session) error {
	session = normalize(session)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !session.Authenticated {
		m.session = nil
		return nil
	}
	m.session = &session
	return nil
}

// Clear implements Store
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.session = nil
	return nil
}
