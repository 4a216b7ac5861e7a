package app

import (
	"context"
	"fmt"
	"time"

	"gamification-service/internal/domain"
)

// QuizCatalog serves the static weekly quizzes and daily brain teasers.
type QuizCatalog struct {
	weekly    []domain.QuestionSet
	teasers   []domain.BrainTeaser
	questions map[string]domain.Question
}

// NewQuizCatalog indexes every question id; ids must be unique across weekly sets and teasers.
func NewQuizCatalog(weekly []domain.QuestionSet, teasers []domain.BrainTeaser) (*QuizCatalog, error) {
	if len(weekly) == 0 || len(teasers) == 0 {
		return nil, fmt.Errorf("%w: catalog needs at least one weekly quiz and one brain teaser", domain.ErrQuizNotFound)
	}
	c := &QuizCatalog{weekly: weekly, teasers: teasers, questions: make(map[string]domain.Question)}
	add := func(q domain.Question) error {
		if _, dup := c.questions[q.ID]; dup {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex >= len(q.Options) {
			return fmt.Errorf("question %q: %w", q.ID, domain.ErrInvalidOption)
		}
		c.questions[q.ID] = q
		return nil
	}
	for _, set := range weekly {
		for _, q := range set.Questions {
			if err := add(q); err != nil {
				return nil, err
			}
		}
	}
	for _, t := range teasers {
		if err := add(t.Question); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// WeeklyQuiz rotates through the weekly sets by ISO week.
func (c *QuizCatalog) WeeklyQuiz(now time.Time) domain.QuestionSet {
	year, week := now.UTC().ISOWeek()
	return c.weekly[(year*53+week)%len(c.weekly)]
}

// DailyBrainTeaser rotates through the teasers by UTC calendar day.
func (c *QuizCatalog) DailyBrainTeaser(now time.Time) domain.BrainTeaser {
	const secondsPerDay = int64(24 * time.Hour / time.Second)
	secs := now.UTC().Unix()
	day := secs / secondsPerDay
	if secs%secondsPerDay < 0 {
		day--
	}
	n := int64(len(c.teasers))
	return c.teasers[((day%n)+n)%n]
}

// CheckAnswer reports whether answerIndex is right and what it is worth.
func (c *QuizCatalog) CheckAnswer(questionID string, answerIndex int) (correct bool, points int, err error) {
	q, ok := c.questions[questionID]
	if !ok {
		return false, 0, domain.ErrQuestionNotFound
	}
	if answerIndex < 0 || answerIndex >= len(q.Options) {
		return false, 0, domain.ErrInvalidOption
	}
	if answerIndex != q.CorrectAnswerIndex {
		return false, 0, nil
	}
	return true, q.BasePoints, nil
}

// ChallengeService grades catalog quizzes and awards their reward actions.
type ChallengeService struct {
	catalog *QuizCatalog
	ledger  *PointsLedger
	now     func() time.Time
}

func NewChallengeService(catalog *QuizCatalog, ledger *PointsLedger, now func() time.Time) *ChallengeService {
	if now == nil {
		now = time.Now
	}
	return &ChallengeService{catalog: catalog, ledger: ledger, now: now}
}

// SubmitWeeklyQuiz grades answers (question id -> option index) against this week's quiz. A
// submission covering every question earns the completion reward; the graded result is returned
// even when the award is refused.
func (s *ChallengeService) SubmitWeeklyQuiz(ctx context.Context, userID string, answers map[string]int) (domain.WeeklyQuizResult, error) {
	set := s.catalog.WeeklyQuiz(s.now())
	result := domain.WeeklyQuizResult{QuizID: set.ID, Total: len(set.Questions), Complete: true}
	for _, q := range set.Questions {
		answer, ok := answers[q.ID]
		if !ok {
			result.Complete = false
			continue
		}
		correct, points, err := s.catalog.CheckAnswer(q.ID, answer)
		if err != nil {
			return domain.WeeklyQuizResult{}, err
		}
		if correct {
			result.Correct++
			result.Score += points
		}
	}
	if !result.Complete {
		return result, nil
	}

	account, err := s.ledger.Award(ctx, userID, ActionWeeklyQuizCompleted, "quiz "+set.ID)
	if err != nil {
		return result, err
	}
	result.Account = &account
	return result, nil
}

// SolveBrainTeaser checks today's teaser and awards the solve reward on a correct answer.
func (s *ChallengeService) SolveBrainTeaser(ctx context.Context, userID string, answerIndex int) (domain.BrainTeaserResult, error) {
	teaser := s.catalog.DailyBrainTeaser(s.now())
	correct, _, err := s.catalog.CheckAnswer(teaser.Question.ID, answerIndex)
	if err != nil {
		return domain.BrainTeaserResult{}, err
	}
	result := domain.BrainTeaserResult{TeaserID: teaser.ID, Correct: correct}
	if !correct {
		return result, nil
	}
	result.Explanation = teaser.Question.Explanation

	account, err := s.ledger.Award(ctx, userID, ActionBrainTeaserSolved, "teaser "+teaser.ID)
	if err != nil {
		return result, err
	}
	result.Account = &account
	return result, nil
}

// DefaultWeeklyQuizzes is the built-in weekly rotation.
func DefaultWeeklyQuizzes() []domain.QuestionSet {
	return []domain.QuestionSet{
		{
			ID: "weekly-community", Title: "Know your community", Kind: domain.KindWeeklyQuiz,
			Questions: []domain.Question{
				{ID: "wc-1", Prompt: "How many points does finishing onboarding earn?", Options: []string{"25", "50", "100", "150"}, CorrectAnswerIndex: 2, BasePoints: 10, TimeLimitSeconds: 30},
				{ID: "wc-2", Prompt: "Which tier comes after silver?", Options: []string{"bronze", "gold", "platinum", "special"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 30},
				{ID: "wc-3", Prompt: "What level do you reach at 400 lifetime points?", Options: []string{"2", "3", "4", "5"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 30},
			},
		},
		{
			ID: "weekly-general", Title: "General knowledge", Kind: domain.KindWeeklyQuiz,
			Questions: []domain.Question{
				{ID: "wg-1", Prompt: "What is the largest planet in the solar system?", Options: []string{"Saturn", "Jupiter", "Neptune"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 30},
				{ID: "wg-2", Prompt: "How many continents are there?", Options: []string{"5", "6", "7"}, CorrectAnswerIndex: 2, BasePoints: 10, TimeLimitSeconds: 30},
				{ID: "wg-3", Prompt: "Which gas do plants absorb?", Options: []string{"Oxygen", "Carbon dioxide", "Nitrogen"}, CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 30},
			},
		},
	}
}

// DefaultBrainTeasers is the built-in daily rotation.
func DefaultBrainTeasers() []domain.BrainTeaser {
	return []domain.BrainTeaser{
		{ID: "bt-clock", Hint: "Think about the hands.", Question: domain.Question{
			ID: "bt-clock-q", Prompt: "How many times do a clock's hands overlap in a day?", Options: []string{"22", "24", "12"},
			CorrectAnswerIndex: 0, BasePoints: 10, TimeLimitSeconds: 120, Explanation: "They overlap 11 times every 12 hours.",
		}},
		{ID: "bt-sheep", Hint: "Read it twice.", Question: domain.Question{
			ID: "bt-sheep-q", Prompt: "A farmer has 17 sheep and all but 9 run away. How many are left?", Options: []string{"8", "9", "17"},
			CorrectAnswerIndex: 1, BasePoints: 10, TimeLimitSeconds: 120, Explanation: "All but 9 ran away, so 9 remain.",
		}},
		{ID: "bt-month", Question: domain.Question{
			ID: "bt-month-q", Prompt: "How many months have 28 days?", Options: []string{"1", "2", "12"},
			CorrectAnswerIndex: 2, BasePoints: 10, TimeLimitSeconds: 120, Explanation: "Every month has at least 28 days.",
		}},
	}
}
