package memory

import (
	"sync"

	"sciquiz-service/internal/app"
	"sciquiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository,
// keyed by quiz context.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[domain.QuizContext]*app.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[domain.QuizContext]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(qctx domain.QuizContext) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[qctx]; ok {
		return session
	}
	session := app.NewSession(qctx)
	s.sessions[qctx] = session
	return session
}

func (s *SessionStore) Get(qctx domain.QuizContext) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[qctx]
	return session, ok
}

func (s *SessionStore) Delete(qctx domain.QuizContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, qctx)
}
