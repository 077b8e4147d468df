package session

import (
	"context"
	"sync"

	"github.com/spigell/vkinder/internal/profile"
)

// MemoryStore keeps sessions in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[int64]Session)}
}

func (m *MemoryStore) Get(_ context.Context, userID int64) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false, nil
	}
	return clone(s), true, nil
}

func (m *MemoryStore) Put(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[s.UserID] = clone(s).normalize()
	return nil
}

func (m *MemoryStore) Advance(_ context.Context, userID int64) (Session, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return Session{}, false, nil
	}
	if s.Cursor < len(s.Candidates) {
		s.Cursor++
	}
	m.sessions[userID] = s
	return clone(s), true, nil
}

// clone copies the candidate slice so callers never share the stored backing array.
func clone(s Session) Session {
	s.Candidates = append([]profile.Candidate(nil), s.Candidates...)
	return s
}
