package memory

import (
	"context"
	"sync"

	"quizbowl-practice/internal/app"
	"quizbowl-practice/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository and
// app.ProgressStore.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.Session
	progress map[string]map[string]int
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.Session),
		progress: make(map[string]map[string]int),
	}
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) Put(userID string, session *app.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = session
}

func (s *SessionStore) Delete(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}

func (s *SessionStore) SaveProgress(_ context.Context, userID string, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bySet, ok := s.progress[userID]
	if !ok {
		bySet = make(map[string]int)
		s.progress[userID] = bySet
	}
	bySet[p.SetID] = p.Index
	return nil
}

func (s *SessionStore) LoadProgress(_ context.Context, userID, setID string) (domain.Progress, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index, ok := s.progress[userID][setID]
	if !ok {
		return domain.Progress{}, false, nil
	}
	return domain.Progress{SetID: setID, Index: index}, true, nil
}
