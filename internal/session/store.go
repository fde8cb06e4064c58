package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned by Store.Get for unknown or expired sessions.
var ErrNotFound = errors.New("session not found")

// Store keeps sessions on the server side.
type Store interface {
	Save(ctx context.Context, s *Session) error
	// Get returns ErrNotFound for an unknown or expired id.
	Get(ctx context.Context, id string) (*Session, error)
	// Delete is a no-op for an unknown id.
	Delete(ctx context.Context, id string) error
	// Len counts live (unexpired) sessions.
	Len() int
}

var _ Store = (*MemoryStore)(nil)

// MemoryStore is a process-local Store.
//
// Expired sessions are evicted on Get, and every Save sweeps out all
// expired entries while it holds the lock. There is no background sweeper.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

// NewMemoryStoreWithClock lets tests control expiry.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
		now:      now,
	}
}

func (m *MemoryStore) Save(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for id, old := range m.sessions {
		if old.IsExpiredAt(now) {
			delete(m.sessions, id)
		}
	}

	m.sessions[s.ID] = s.clone()
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if s.IsExpiredAt(m.now()) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	return s.clone(), nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)
	return nil
}

// held counts stored entries, expired or not.
func (m *MemoryStore) held() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	n := 0
	for _, s := range m.sessions {
		if !s.IsExpiredAt(now) {
			n++
		}
	}
	return n
}
