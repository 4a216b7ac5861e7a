package domain

import "time"

// QuizStatus is derived from the wall clock relative to an event schedule.
type QuizStatus string

const (
	StatusScheduled QuizStatus = "scheduled"
	StatusLive      QuizStatus = "live"
	StatusEnded     QuizStatus = "ended"
)

// Question models a multiple choice question with exactly one correct option.
type Question struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	BasePoints         int      `json:"basePoints"`
	TimeLimitSeconds   int      `json:"timeLimitSeconds"`
	Explanation        string   `json:"explanation,omitempty"`
}

// View strips the answer so the question can be sent to participants.
func (q Question) View() QuestionView {
	return QuestionView{
		ID:               q.ID,
		Prompt:           q.Prompt,
		Options:          append([]string(nil), q.Options...),
		BasePoints:       q.BasePoints,
		TimeLimitSeconds: q.TimeLimitSeconds,
	}
}

// QuestionView is a question without its correct answer.
type QuestionView struct {
	ID               string   `json:"id"`
	Prompt           string   `json:"prompt"`
	Options          []string `json:"options"`
	BasePoints       int      `json:"basePoints"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
}

// LiveQuizEvent is a scheduled real-time quiz.
type LiveQuizEvent struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	StartsAt  time.Time     `json:"startsAt"`
	Duration  time.Duration `json:"duration"`
	Questions []Question    `json:"questions"`
}

// EndsAt is the last instant at which the event is live.
func (e LiveQuizEvent) EndsAt() time.Time {
	return e.StartsAt.Add(e.Duration)
}

// Status derives the event state from now. Both schedule bounds are inclusive of live.
func (e LiveQuizEvent) Status(now time.Time) QuizStatus {
	switch {
	case now.Before(e.StartsAt):
		return StatusScheduled
	case now.After(e.EndsAt()):
		return StatusEnded
	default:
		return StatusLive
	}
}

// QuestionOpensAt returns when question i starts its timer. Questions run back to back from the start.
func (e LiveQuizEvent) QuestionOpensAt(i int) time.Time {
	opens := e.StartsAt
	for j := 0; j < i && j < len(e.Questions); j++ {
		opens = opens.Add(time.Duration(e.Questions[j].TimeLimitSeconds) * time.Second)
	}
	return opens
}

// Participant represents a quiz participant and their accumulated score.
type Participant struct {
	UserID       string     `json:"userId"`
	Name         string     `json:"name"`
	Score        int        `json:"score"`
	LastAnswerAt *time.Time `json:"lastAnswerAt,omitempty"`
}

// LeaderboardEntry is a ranked view of a participant or account.
type LeaderboardEntry struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Score  int    `json:"score"`
	Rank   int    `json:"rank"`
}

// Leaderboard captures the ordered scoreboard for a live quiz or community period.
type Leaderboard struct {
	ID        string             `json:"id"`
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// AnswerResult summarizes the outcome of a submission for a single user.
type AnswerResult struct {
	QuestionID string `json:"questionId"`
	Correct    bool   `json:"correct"`
	Points     int    `json:"points"`
	Position   int    `json:"position"`
	TotalScore int    `json:"totalScore"`
}

// QuizKind distinguishes catalog question sets.
type QuizKind string

const (
	KindWeeklyQuiz  QuizKind = "weekly_quiz"
	KindBrainTeaser QuizKind = "brain_teaser"
)

// QuestionSet is a static collection of questions from the quiz catalog.
type QuestionSet struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Kind      QuizKind   `json:"kind"`
	Questions []Question `json:"questions"`
}

// BrainTeaser is a single-question daily puzzle.
type BrainTeaser struct {
	ID       string   `json:"id"`
	Question Question `json:"question"`
	Hint     string   `json:"hint,omitempty"`
}

// WeeklyQuizResult is the graded outcome of a weekly quiz submission.
type WeeklyQuizResult struct {
	QuizID   string         `json:"quizId"`
	Correct  int            `json:"correct"`
	Total    int            `json:"total"`
	Score    int            `json:"score"`
	Complete bool           `json:"complete"`
	Account  *PointsAccount `json:"account,omitempty"`
}

// BrainTeaserResult is the outcome of answering the daily brain teaser.
type BrainTeaserResult struct {
	TeaserID    string         `json:"teaserId"`
	Correct     bool           `json:"correct"`
	Explanation string         `json:"explanation,omitempty"`
	Account     *PointsAccount `json:"account,omitempty"`
}
