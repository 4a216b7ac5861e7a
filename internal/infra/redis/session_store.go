package redis

import (
	"context"
	"sync"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Notes:
//   - It still keeps a local in-memory map of sessions to reuse the in-process broadcast logic.
//   - Redis marks which events have an active session until the event ends, so other
//     instances and dashboards can discover running quizzes.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
	sessions map[string]*app.LiveQuizSession
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		now:      time.Now,
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
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), sessionKey(event.ID), event.Title, s.markerTTL(event)).Err()
	return session
}

func (s *SessionStore) Get(eventID string) (*app.LiveQuizSession, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[eventID]
	return session, ok
}

func (s *SessionStore) DeleteEnded(now time.Time) []*app.LiveQuizSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	var dropped []*app.LiveQuizSession
	for id, session := range s.sessions {
		if session.Status(now) != domain.StatusEnded {
			continue
		}
		delete(s.sessions, id)
		_ = s.client.Del(context.Background(), sessionKey(id)).Err()
		dropped = append(dropped, session)
	}
	return dropped
}

// markerTTL keeps the marker until the event ends, never shorter than the configured ttl.
func (s *SessionStore) markerTTL(event domain.LiveQuizEvent) time.Duration {
	untilEnd := event.EndsAt().Sub(s.now())
	if untilEnd > s.ttl {
		return untilEnd
	}
	return s.ttl
}
