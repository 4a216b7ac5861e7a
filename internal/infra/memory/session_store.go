package memory

import (
	"sync"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*app.LiveQuizSession
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*app.LiveQuizSession),
	}
}

func (s *SessionStore) GetOrCreate(event domain.LiveQuizEvent) *app.LiveQuizSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[event.ID]; ok {
		return session
	}
	session := app.NewLiveQuizSession(event)
	s.sessions[event.ID] = session
	return session
}

func (s *SessionStore) Get(eventID string) (*app.LiveQuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[eventID]
	return session, ok
}

// DeleteEnded forgets sessions whose events are over and returns them.
func (s *SessionStore) DeleteEnded(now time.Time) []*app.LiveQuizSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []*app.LiveQuizSession
	for id, session := range s.sessions {
		if session.Status(now) == domain.StatusEnded {
			delete(s.sessions, id)
			dropped = append(dropped, session)
		}
	}
	return dropped
}
