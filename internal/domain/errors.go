package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownAction is returned when an award references an unregistered reward action.
	ErrUnknownAction = errors.New("unknown reward action")
	// ErrActionDisabled is returned when the reward action exists but is switched off.
	ErrActionDisabled = errors.New("reward action disabled")
	// ErrCooldownActive is matched by *CooldownError.
	ErrCooldownActive = errors.New("reward action cooldown active")
	// ErrMaxOccurrencesReached is returned once a capped action has been awarded its limit.
	ErrMaxOccurrencesReached = errors.New("reward action max occurrences reached")
	// ErrInvalidAction indicates a reward action definition failed validation.
	ErrInvalidAction = errors.New("invalid reward action")
	// ErrAccountNotFound is returned when no points account exists for a user.
	ErrAccountNotFound = errors.New("points account not found")
	// ErrVersionConflict is returned by account stores when a concurrent writer won.
	ErrVersionConflict = errors.New("points account version conflict")
	// ErrInsufficientPoints is returned when a redemption exceeds the spendable balance.
	ErrInsufficientPoints = errors.New("insufficient points")
	// ErrInvalidAmount is returned for non-positive redemptions.
	ErrInvalidAmount = errors.New("invalid points amount")

	// ErrEventNotFound indicates the live quiz event could not be loaded.
	ErrEventNotFound = errors.New("live quiz event not found")
	// ErrJoinNotAllowed is returned when joining a quiz that has ended.
	ErrJoinNotAllowed = errors.New("quiz is not accepting participants")
	// ErrQuizNotLive is returned when answering outside the live window.
	ErrQuizNotLive = errors.New("quiz is not live")
	// ErrQuizNotEnded is returned when finalizing an event that is still running.
	ErrQuizNotEnded = errors.New("quiz has not ended")
	// ErrParticipantNotFound is returned when a user tries to act before joining.
	ErrParticipantNotFound = errors.New("participant not found in quiz")
	// ErrQuestionNotFound indicates a submitted question ID is invalid.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrQuestionNotOpen is returned for answers to a question whose timer has not started.
	ErrQuestionNotOpen = errors.New("question not open yet")
	// ErrAlreadyAnswered is returned when a participant resubmits the same question.
	ErrAlreadyAnswered = errors.New("question already answered")
	// ErrInvalidOption indicates the answer index is outside the option list.
	ErrInvalidOption = errors.New("answer option out of range")
	// ErrQuizNotFound indicates a catalog question set could not be found.
	ErrQuizNotFound = errors.New("quiz not found")
)

// CooldownError reports how long a user has to wait before the action can be awarded again.
type CooldownError struct {
	ActionID  string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%s: %s remaining for %q", ErrCooldownActive, e.Remaining.Round(time.Second), e.ActionID)
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}
