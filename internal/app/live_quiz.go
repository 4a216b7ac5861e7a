package app

import (
	"sync"
	"time"

	"gamification-service/internal/domain"
)

// LiveQuizSession holds the in-memory state of one live quiz event.
// Status is never stored: every call derives it from the now it is given.
type LiveQuizSession struct {
	event  domain.LiveQuizEvent
	scorer Scorer

	mu           sync.RWMutex
	participants []*participantState // join order
	byUser       map[string]*participantState
	subscribers  map[chan domain.Leaderboard]struct{}
	updatedAt    time.Time
}

type participantState struct {
	domain.Participant
	answered map[string]struct{}
}

// NewLiveQuizSession creates a session that scores with TimeBonusScorer.
func NewLiveQuizSession(event domain.LiveQuizEvent) *LiveQuizSession {
	return NewLiveQuizSessionWithScorer(event, TimeBonusScorer{})
}

func NewLiveQuizSessionWithScorer(event domain.LiveQuizEvent, scorer Scorer) *LiveQuizSession {
	return &LiveQuizSession{
		event:       event,
		scorer:      scorer,
		byUser:      make(map[string]*participantState),
		subscribers: make(map[chan domain.Leaderboard]struct{}),
	}
}

// Event returns the schedule and questions the session runs.
func (s *LiveQuizSession) Event() domain.LiveQuizEvent {
	return s.event
}

// Status derives scheduled, live or ended from now.
func (s *LiveQuizSession) Status(now time.Time) domain.QuizStatus {
	return s.event.Status(now)
}

// CurrentQuestion returns the question whose timer is running at now.
// ok is false outside the live window and after the last question's timer ran out.
func (s *LiveQuizSession) CurrentQuestion(now time.Time) (question domain.Question, index int, ok bool) {
	if s.event.Status(now) != domain.StatusLive {
		return domain.Question{}, -1, false
	}
	for i, q := range s.event.Questions {
		closes := s.event.QuestionOpensAt(i).Add(time.Duration(q.TimeLimitSeconds) * time.Second)
		if now.Before(closes) {
			return q, i, true
		}
	}
	return domain.Question{}, -1, false
}

// Join adds a participant while the event is scheduled or live. Joining twice is a no-op.
func (s *LiveQuizSession) Join(now time.Time, userID, name string) error {
	if s.event.Status(now) == domain.StatusEnded {
		return domain.ErrJoinNotAllowed
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[userID]; ok {
		return nil
	}
	p := &participantState{
		Participant: domain.Participant{UserID: userID, Name: name},
		answered:    make(map[string]struct{}),
	}
	s.participants = append(s.participants, p)
	s.byUser[userID] = p
	s.updatedAt = now
	s.broadcastLocked()
	return nil
}

// SubmitAnswer scores an answer using the time elapsed since the question opened.
// A participant may answer each question once.
func (s *LiveQuizSession) SubmitAnswer(now time.Time, userID, questionID string, answerIndex int) (domain.AnswerResult, error) {
	if s.event.Status(now) != domain.StatusLive {
		return domain.AnswerResult{}, domain.ErrQuizNotLive
	}
	qIndex := -1
	for i := range s.event.Questions {
		if s.event.Questions[i].ID == questionID {
			qIndex = i
			break
		}
	}
	if qIndex < 0 {
		return domain.AnswerResult{}, domain.ErrQuestionNotFound
	}
	question := s.event.Questions[qIndex]
	if answerIndex < 0 || answerIndex >= len(question.Options) {
		return domain.AnswerResult{}, domain.ErrInvalidOption
	}
	opensAt := s.event.QuestionOpensAt(qIndex)
	if now.Before(opensAt) {
		return domain.AnswerResult{}, domain.ErrQuestionNotOpen
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	participant, ok := s.byUser[userID]
	if !ok {
		return domain.AnswerResult{}, domain.ErrParticipantNotFound
	}
	if _, dup := participant.answered[questionID]; dup {
		return domain.AnswerResult{}, domain.ErrAlreadyAnswered
	}

	correct, points := s.scorer.Score(question, answerIndex, now.Sub(opensAt).Seconds())
	participant.answered[questionID] = struct{}{}
	if correct {
		participant.Score += points
		ts := now
		participant.LastAnswerAt = &ts
	} else {
		points = 0
	}
	s.updatedAt = now

	lb := s.broadcastLocked()
	position := 0
	for _, e := range lb.Entries {
		if e.UserID == userID {
			position = e.Rank
			break
		}
	}
	return domain.AnswerResult{
		QuestionID: questionID,
		Correct:    correct,
		Points:     points,
		Position:   position,
		TotalScore: participant.Score,
	}, nil
}

// Participants returns a copy of the participants in join order.
func (s *LiveQuizSession) Participants() []domain.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Participant, len(s.participants))
	for i, p := range s.participants {
		out[i] = p.Participant
	}
	return out
}

// Leaderboard returns a ranked snapshot.
func (s *LiveQuizSession) Leaderboard() domain.Leaderboard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// Subscribe returns a channel of leaderboard updates, primed with the current snapshot.
// The caller must invoke the returned cancel function to avoid leaks.
func (s *LiveQuizSession) Subscribe() (<-chan domain.Leaderboard, func()) {
	ch := make(chan domain.Leaderboard, 8)

	// primed under the lock: broadcasts cannot fill the buffer ahead of the snapshot
	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

func (s *LiveQuizSession) broadcastLocked() domain.Leaderboard {
	lb := s.snapshotLocked()
	for ch := range s.subscribers {
		select {
		case ch <- lb:
		default:
			// slow subscriber: replace its oldest pending update
			select {
			case <-ch:
			default:
			}
			ch <- lb
		}
	}
	return lb
}

func (s *LiveQuizSession) snapshotLocked() domain.Leaderboard {
	standings := make([]Standing, len(s.participants))
	for i, p := range s.participants {
		standings[i] = Standing{
			UserID:       p.UserID,
			Name:         p.Name,
			Score:        p.Score,
			LastScoredAt: p.LastAnswerAt,
		}
	}
	return domain.Leaderboard{
		ID:        s.event.ID,
		Entries:   Rank(standings),
		UpdatedAt: s.updatedAt,
	}
}
