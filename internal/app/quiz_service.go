package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gamification-service/internal/domain"
	"go.uber.org/zap"
)

// SessionRepository abstracts how live quiz sessions are held (in-memory, Redis-marked, etc).
type SessionRepository interface {
	GetOrCreate(event domain.LiveQuizEvent) *LiveQuizSession
	Get(eventID string) (*LiveQuizSession, bool)
	// DeleteEnded removes sessions whose events are over and returns them.
	DeleteEnded(now time.Time) []*LiveQuizSession
}

// EventRepository loads live quiz events (from cache/backing store).
type EventRepository interface {
	GetEvent(ctx context.Context, eventID string) (domain.LiveQuizEvent, error)
}

// podiumSize is how many top finishers earn the podium reward.
const podiumSize = 3

// LiveQuizService contains the live quiz use cases. It reads the clock once per call and hands
// that instant to the session so a call sees a single consistent status.
//
// Pruned events keep their final leaderboard, so standings and the podium survive the session.
type LiveQuizService struct {
	sessions SessionRepository
	events   EventRepository
	now      func() time.Time
	ledger   *PointsLedger

	// mu guards results and paid, and orders session lookups against PruneEnded.
	mu      sync.RWMutex
	results map[string]domain.Leaderboard
	paid    map[string]map[string]struct{}
	podiums *keyedMutex
}

// ServiceOption customizes a LiveQuizService.
type ServiceOption func(*LiveQuizService)

// WithServiceClock is test-only for deterministic timestamps.
func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *LiveQuizService) { s.now = now }
}

// WithPodiumLedger awards the podium reward through ledger when an event is finalized.
func WithPodiumLedger(ledger *PointsLedger) ServiceOption {
	return func(s *LiveQuizService) { s.ledger = ledger }
}

func NewLiveQuizService(sessions SessionRepository, events EventRepository, opts ...ServiceOption) *LiveQuizService {
	s := &LiveQuizService{
		sessions: sessions,
		events:   events,
		now:      time.Now,
		results:  make(map[string]domain.Leaderboard),
		paid:     make(map[string]map[string]struct{}),
		podiums:  newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// lookup returns the running session, or the final leaderboard when the event was pruned.
func (s *LiveQuizService) lookup(ctx context.Context, eventID string) (*LiveQuizSession, *domain.Leaderboard, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if final, ok := s.results[eventID]; ok {
		return nil, &final, nil
	}
	if session, ok := s.sessions.Get(eventID); ok {
		return session, nil, nil
	}
	// Users cannot reach unknown events.
	event, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	return s.sessions.GetOrCreate(event), nil, nil
}

// Join registers a participant and returns the current leaderboard.
func (s *LiveQuizService) Join(ctx context.Context, eventID, userID, name string) (domain.Leaderboard, error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if final != nil {
		return domain.Leaderboard{}, domain.ErrJoinNotAllowed
	}
	if err := session.Join(s.now(), userID, name); err != nil {
		return domain.Leaderboard{}, err
	}
	return session.Leaderboard(), nil
}

// SubmitAnswer records an answer for a participant and returns their new position.
func (s *LiveQuizService) SubmitAnswer(ctx context.Context, eventID, userID, questionID string, answerIndex int) (domain.AnswerResult, error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return domain.AnswerResult{}, err
	}
	if final != nil {
		return domain.AnswerResult{}, domain.ErrQuizNotLive
	}
	return session.SubmitAnswer(s.now(), userID, questionID, answerIndex)
}

// Status reports the derived state of an event.
func (s *LiveQuizService) Status(ctx context.Context, eventID string) (domain.QuizStatus, error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return "", err
	}
	if final != nil {
		return domain.StatusEnded, nil
	}
	return session.Status(s.now()), nil
}

// CurrentQuestion returns the open question without its answer. ok is false between questions.
func (s *LiveQuizService) CurrentQuestion(ctx context.Context, eventID string) (view domain.QuestionView, index int, ok bool, err error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return domain.QuestionView{}, -1, false, err
	}
	if final != nil {
		return domain.QuestionView{}, -1, false, nil
	}
	q, idx, ok := session.CurrentQuestion(s.now())
	if !ok {
		return domain.QuestionView{}, -1, false, nil
	}
	return q.View(), idx, true, nil
}

// Leaderboard returns a consistent snapshot of the ranking.
func (s *LiveQuizService) Leaderboard(ctx context.Context, eventID string) (domain.Leaderboard, error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	if final != nil {
		return *final, nil
	}
	return session.Leaderboard(), nil
}

// Subscribe returns a channel that receives leaderboard updates for an event.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LiveQuizService) Subscribe(ctx context.Context, eventID string) (<-chan domain.Leaderboard, func(), error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	if final != nil {
		// nothing changes after the end; the final board is the only update
		ch := make(chan domain.Leaderboard, 1)
		ch <- *final
		var once sync.Once
		return ch, func() { once.Do(func() { close(ch) }) }, nil
	}
	ch, cancel := session.Subscribe()
	return ch, cancel, nil
}

// Finalize awards the podium reward once the event has ended and returns the podium.
// Each podium user is rewarded at most once; awards that failed transiently are retried by the
// next call, which reports them in its error.
func (s *LiveQuizService) Finalize(ctx context.Context, eventID string) ([]domain.LeaderboardEntry, error) {
	session, final, err := s.lookup(ctx, eventID)
	if err != nil {
		return nil, err
	}
	board := final
	if board == nil {
		if session.Status(s.now()) != domain.StatusEnded {
			return nil, domain.ErrQuizNotEnded
		}
		lb := session.Leaderboard()
		board = &lb
	}

	podium := make([]domain.LeaderboardEntry, 0, podiumSize)
	for _, e := range board.Entries {
		if len(podium) == podiumSize || e.Score == 0 {
			break
		}
		podium = append(podium, e)
	}
	if s.ledger == nil {
		return podium, nil
	}

	unlock := s.podiums.Lock(eventID)
	defer unlock()

	var pending error
	for _, e := range podium {
		if s.isPaid(eventID, e.UserID) {
			continue
		}
		err := s.awardPodium(ctx, eventID, e)
		if err != nil && !permanentAwardError(err) {
			pending = errors.Join(pending, fmt.Errorf("user %s: %w", e.UserID, err))
			continue
		}
		if err != nil {
			zap.L().Warn("podium award refused",
				zap.String("event_id", eventID),
				zap.String("user_id", e.UserID),
				zap.Error(err),
			)
		}
		s.markPaid(eventID, e.UserID)
	}
	if pending != nil {
		return podium, fmt.Errorf("award podium for %s: %w", eventID, pending)
	}
	return podium, nil
}

// awardPodium creates the winner's account under their quiz name when it is new.
func (s *LiveQuizService) awardPodium(ctx context.Context, eventID string, e domain.LeaderboardEntry) error {
	if _, err := s.ledger.Initialize(ctx, e.UserID, e.Name); err != nil {
		return err
	}
	notes := fmt.Sprintf("event %s rank %d", eventID, e.Rank)
	_, err := s.ledger.Award(ctx, e.UserID, ActionLiveQuizPodium, notes)
	return err
}

// permanentAwardError reports award refusals that a retry cannot change.
func permanentAwardError(err error) bool {
	return errors.Is(err, domain.ErrUnknownAction) ||
		errors.Is(err, domain.ErrActionDisabled) ||
		errors.Is(err, domain.ErrCooldownActive) ||
		errors.Is(err, domain.ErrMaxOccurrencesReached)
}

func (s *LiveQuizService) isPaid(eventID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.paid[eventID][userID]
	return ok
}

func (s *LiveQuizService) markPaid(eventID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users, ok := s.paid[eventID]
	if !ok {
		users = make(map[string]struct{})
		s.paid[eventID] = users
	}
	users[userID] = struct{}{}
}

// PruneEnded drops sessions whose events finished, keeping their final leaderboard and
// finalizing the podium. It returns how many sessions were dropped.
func (s *LiveQuizService) PruneEnded(ctx context.Context) int {
	s.mu.Lock()
	ended := s.sessions.DeleteEnded(s.now())
	for _, session := range ended {
		s.results[session.Event().ID] = session.Leaderboard()
	}
	s.mu.Unlock()

	for _, session := range ended {
		eventID := session.Event().ID
		if _, err := s.Finalize(ctx, eventID); err != nil {
			zap.L().Warn("finalize pruned live quiz failed",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
		}
	}
	return len(ended)
}
