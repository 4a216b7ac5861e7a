package app

import (
	"math"

	"gamification-service/internal/domain"
)

// secondsPerBonusPoint is how much faster than the limit an answer must be to earn one extra point.
const secondsPerBonusPoint = 5

// Scorer computes the outcome of one answer.
type Scorer interface {
	Score(question domain.Question, answerIndex int, answerTimeSeconds float64) (correct bool, points int)
}

// TimeBonusScorer awards base points plus one point per five seconds left on the clock.
type TimeBonusScorer struct{}

func (TimeBonusScorer) Score(question domain.Question, answerIndex int, answerTimeSeconds float64) (bool, int) {
	if answerIndex != question.CorrectAnswerIndex {
		return false, 0
	}
	remaining := math.Max(0, float64(question.TimeLimitSeconds)-answerTimeSeconds)
	return true, question.BasePoints + int(math.Floor(remaining/secondsPerBonusPoint))
}
