package app

import (
	"context"
	"errors"
	"time"

	"gamification-service/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AccountRepository abstracts where points accounts live (memory, Postgres).
// Save must fail with domain.ErrVersionConflict when the stored version is not expectedVersion;
// an expectedVersion of 0 means the account must not exist yet.
type AccountRepository interface {
	Get(ctx context.Context, userID string) (domain.PointsAccount, error)
	Save(ctx context.Context, account domain.PointsAccount, expectedVersion int) error
	List(ctx context.Context) ([]domain.PointsAccount, error)
}

// AwardListener is told about every stored award. Errors are logged, never propagated.
type AwardListener interface {
	OnAward(ctx context.Context, event domain.AwardEvent) error
}

// DefaultHistoryLimit bounds PointsAccount.RecentActions.
const DefaultHistoryLimit = 50

const maxSaveAttempts = 3

// PointsLedger owns every mutation of points accounts.
type PointsLedger struct {
	accounts     AccountRepository
	actions      *ActionCatalog
	achievements *AchievementEngine
	listeners    []AwardListener
	locks        *keyedMutex
	now          func() time.Time
	newID        func() string
	historyLimit int
	log          *zap.Logger
}

// LedgerOption customizes a PointsLedger.
type LedgerOption func(*PointsLedger)

// WithLedgerClock is used by tests for deterministic timestamps.
func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(l *PointsLedger) { l.now = now }
}

// WithRecordIDs overrides the action record id generator.
func WithRecordIDs(newID func() string) LedgerOption {
	return func(l *PointsLedger) { l.newID = newID }
}

// WithAwardListeners registers listeners notified after each award.
func WithAwardListeners(listeners ...AwardListener) LedgerOption {
	return func(l *PointsLedger) { l.listeners = append(l.listeners, listeners...) }
}

// WithHistoryLimit changes how many recent actions an account keeps.
func WithHistoryLimit(n int) LedgerOption {
	return func(l *PointsLedger) {
		if n > 0 {
			l.historyLimit = n
		}
	}
}

func NewPointsLedger(accounts AccountRepository, actions *ActionCatalog, achievements *AchievementEngine, opts ...LedgerOption) *PointsLedger {
	l := &PointsLedger{
		accounts:     accounts,
		actions:      actions,
		achievements: achievements,
		locks:        newKeyedMutex(),
		now:          time.Now,
		newID:        uuid.NewString,
		historyLimit: DefaultHistoryLimit,
		log:          zap.L().Named("ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize creates a zeroed account, or returns the existing one untouched.
func (l *PointsLedger) Initialize(ctx context.Context, userID, name string) (domain.PointsAccount, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	account, err := l.accounts.Get(ctx, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, domain.ErrAccountNotFound) {
		return domain.PointsAccount{}, err
	}

	account = domain.NewPointsAccount(userID, name, l.now())
	account.Version = 1
	if err := l.accounts.Save(ctx, account, 0); err != nil {
		if errors.Is(err, domain.ErrVersionConflict) {
			// another instance created it first
			return l.accounts.Get(ctx, userID)
		}
		return domain.PointsAccount{}, err
	}
	return account, nil
}

// GetAccount returns the stored account or domain.ErrAccountNotFound.
func (l *PointsLedger) GetAccount(ctx context.Context, userID string) (domain.PointsAccount, error) {
	return l.accounts.Get(ctx, userID)
}

// Award grants actionID to userID, creating the account on first use.
// It is not idempotent: callers must de-duplicate the same logical event upstream.
func (l *PointsLedger) Award(ctx context.Context, userID, actionID, notes string) (domain.PointsAccount, error) {
	action, err := l.actions.Get(actionID)
	if err != nil {
		return domain.PointsAccount{}, err
	}
	if !action.IsEnabled {
		return domain.PointsAccount{}, domain.ErrActionDisabled
	}

	unlock := l.locks.Lock(userID)
	var event domain.AwardEvent
	account, err := l.mutate(ctx, userID, true, func(acct *domain.PointsAccount, now time.Time) error {
		var applyErr error
		event, applyErr = l.applyAward(acct, action, notes, now)
		return applyErr
	})
	unlock()
	if err != nil {
		return domain.PointsAccount{}, err
	}

	l.log.Debug("points awarded",
		zap.String("user_id", userID),
		zap.String("action_id", actionID),
		zap.Int("points", action.PointValue),
		zap.Int("lifetime_points", account.LifetimePoints),
		zap.Int("unlocked", len(event.Unlocked)),
	)
	l.notify(ctx, event)
	return account, nil
}

// Redeem spends points from the current balance. Lifetime points are unaffected.
func (l *PointsLedger) Redeem(ctx context.Context, userID string, points int) (domain.PointsAccount, error) {
	if points <= 0 {
		return domain.PointsAccount{}, domain.ErrInvalidAmount
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	return l.mutate(ctx, userID, false, func(acct *domain.PointsAccount, _ time.Time) error {
		if acct.CurrentPoints < points {
			return domain.ErrInsufficientPoints
		}
		acct.CurrentPoints -= points
		return nil
	})
}

// Reevaluate re-runs the achievement engine and stores any new unlocks.
func (l *PointsLedger) Reevaluate(ctx context.Context, userID string) (domain.PointsAccount, error) {
	unlock := l.locks.Lock(userID)
	defer unlock()

	current, err := l.accounts.Get(ctx, userID)
	if err != nil {
		return domain.PointsAccount{}, err
	}
	if len(l.achievements.Evaluate(current, l.now())) == 0 {
		return current, nil
	}
	return l.mutate(ctx, userID, false, func(acct *domain.PointsAccount, now time.Time) error {
		mergeUnlocked(acct, l.achievements.Evaluate(*acct, now))
		return nil
	})
}

// mutate applies fn to a copy of the stored account and saves it, retrying on version conflicts.
// Nothing is written when fn fails.
func (l *PointsLedger) mutate(ctx context.Context, userID string, create bool, fn func(*domain.PointsAccount, time.Time) error) (domain.PointsAccount, error) {
	for attempt := 1; ; attempt++ {
		now := l.now()
		current, err := l.accounts.Get(ctx, userID)
		switch {
		case errors.Is(err, domain.ErrAccountNotFound) && create:
			current = domain.NewPointsAccount(userID, "", now)
		case err != nil:
			return domain.PointsAccount{}, err
		}

		expected := current.Version
		next := current.Clone()
		if err := fn(&next, now); err != nil {
			return domain.PointsAccount{}, err
		}
		next.Version = expected + 1
		next.UpdatedAt = now

		err = l.accounts.Save(ctx, next, expected)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= maxSaveAttempts {
			return domain.PointsAccount{}, err
		}
		l.log.Warn("account version conflict, retrying", zap.String("user_id", userID), zap.Int("attempt", attempt))
	}
}

func (l *PointsLedger) applyAward(acct *domain.PointsAccount, action domain.RewardAction, notes string, now time.Time) (domain.AwardEvent, error) {
	stats := acct.ActionStats[action.ID]
	if action.Cooldown > 0 && stats.Count > 0 {
		if elapsed := now.Sub(stats.LastAwardedAt); elapsed < action.Cooldown {
			return domain.AwardEvent{}, &domain.CooldownError{ActionID: action.ID, Remaining: action.Cooldown - elapsed}
		}
	}
	if action.MaxOccurrences > 0 && stats.Count >= action.MaxOccurrences {
		return domain.AwardEvent{}, domain.ErrMaxOccurrencesReached
	}

	record := domain.ActionRecord{
		ID:           l.newID(),
		ActionID:     action.ID,
		Timestamp:    now,
		PointsEarned: action.PointValue,
		Notes:        notes,
	}
	acct.RecentActions = append([]domain.ActionRecord{record}, acct.RecentActions...)
	if len(acct.RecentActions) > l.historyLimit {
		acct.RecentActions = acct.RecentActions[:l.historyLimit]
	}
	acct.ActionStats[action.ID] = domain.ActionStats{Count: stats.Count + 1, LastAwardedAt: now}

	acct.CurrentPoints += action.PointValue
	acct.LifetimePoints += action.PointValue
	acct.Level = domain.LevelFor(acct.LifetimePoints)
	added := mergeUnlocked(acct, l.achievements.Evaluate(*acct, now))

	return domain.AwardEvent{
		UserID:         acct.UserID,
		ActionID:       action.ID,
		RecordID:       record.ID,
		Points:         action.PointValue,
		LifetimePoints: acct.LifetimePoints,
		Level:          acct.Level,
		Name:           acct.Name,
		Unlocked:       added,
		AwardedAt:      now,
	}, nil
}

func (l *PointsLedger) notify(ctx context.Context, event domain.AwardEvent) {
	for _, listener := range l.listeners {
		if err := listener.OnAward(ctx, event); err != nil {
			l.log.Warn("award listener failed",
				zap.String("user_id", event.UserID),
				zap.String("action_id", event.ActionID),
				zap.Error(err),
			)
		}
	}
}
