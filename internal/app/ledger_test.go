package app_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
	"gamification-service/internal/infra/memory"
	"github.com/stretchr/testify/require"
)

func TestAwardCreatesAccountAndAddsPoints(t *testing.T) {
	clock := newFakeClock()
	ledger, _ := newTestLedger(t, clock)

	account, err := ledger.Award(context.Background(), "u1", "onboarding", "welcome")
	require.NoError(t, err)
	require.Equal(t, 100, account.CurrentPoints)
	require.Equal(t, 100, account.LifetimePoints)
	require.Equal(t, 2, account.Level)
	require.Len(t, account.RecentActions, 1)
	require.Equal(t, "onboarding", account.RecentActions[0].ActionID)
	require.Equal(t, "welcome", account.RecentActions[0].Notes)
	require.Equal(t, clock.Now(), account.RecentActions[0].Timestamp)
	require.Len(t, account.UnlockedAchievements, 1)
	require.Equal(t, "first_steps", account.UnlockedAchievements[0].AchievementID)

	stored, err := ledger.GetAccount(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, account.LifetimePoints, stored.LifetimePoints)
	require.Equal(t, 1, stored.Version)
}

func TestAwardRejectsUnknownAndDisabledActions(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	_, err := ledger.Award(ctx, "u1", "nope", "")
	require.ErrorIs(t, err, domain.ErrUnknownAction)

	_, err = ledger.Award(ctx, "u1", "off", "")
	require.ErrorIs(t, err, domain.ErrActionDisabled)

	_, err = ledger.GetAccount(ctx, "u1")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAwardCooldown(t *testing.T) {
	clock := newFakeClock()
	ledger, _ := newTestLedger(t, clock)
	ctx := context.Background()

	_, err := ledger.Award(ctx, "u1", "cooldown", "")
	require.NoError(t, err)

	clock.Advance(40 * time.Minute)
	_, err = ledger.Award(ctx, "u1", "cooldown", "")
	require.ErrorIs(t, err, domain.ErrCooldownActive)
	var cooldown *domain.CooldownError
	require.True(t, errors.As(err, &cooldown))
	require.Equal(t, 20*time.Minute, cooldown.Remaining)

	clock.Advance(20 * time.Minute)
	account, err := ledger.Award(ctx, "u1", "cooldown", "")
	require.NoError(t, err)
	require.Equal(t, 10, account.LifetimePoints)
}

func TestAwardMaxOccurrences(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.Award(ctx, "u1", "capped", "")
		require.NoError(t, err, "award %d", i+1)
	}
	_, err := ledger.Award(ctx, "u1", "capped", "")
	require.ErrorIs(t, err, domain.ErrMaxOccurrencesReached)
}

func TestMaxOccurrencesSurvivesHistoryEviction(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	_, err := ledger.Award(ctx, "u1", "onboarding", "")
	require.NoError(t, err)
	for i := 0; i < app.DefaultHistoryLimit+10; i++ {
		_, err := ledger.Award(ctx, "u1", "filler", "")
		require.NoError(t, err)
	}

	account, err := ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, account.RecentActions, app.DefaultHistoryLimit)
	for _, rec := range account.RecentActions {
		require.NotEqual(t, "onboarding", rec.ActionID)
	}

	_, err = ledger.Award(ctx, "u1", "onboarding", "")
	require.ErrorIs(t, err, domain.ErrMaxOccurrencesReached)
}

func TestRecentActionsAreMostRecentFirst(t *testing.T) {
	clock := newFakeClock()
	ledger, _ := newTestLedger(t, clock, app.WithHistoryLimit(2))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ledger.Award(ctx, "u1", "filler", fmt.Sprintf("n%d", i))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	account, _ := ledger.GetAccount(ctx, "u1")
	require.Len(t, account.RecentActions, 2)
	require.Equal(t, "n2", account.RecentActions[0].Notes)
	require.Equal(t, "n1", account.RecentActions[1].Notes)
	require.Equal(t, 30, account.LifetimePoints)
}

func TestLevelTracksLifetimePoints(t *testing.T) {
	cases := []struct {
		lifetime int
		level    int
	}{
		{0, 1}, {99, 1}, {100, 2}, {399, 2}, {400, 3}, {899, 3}, {900, 4}, {2500, 6}, {10000, 11},
	}
	for _, tc := range cases {
		require.Equal(t, tc.level, domain.LevelFor(tc.lifetime), "lifetime %d", tc.lifetime)
	}

	ledger, _ := newTestLedger(t, newFakeClock())
	for i := 0; i < 40; i++ {
		account, err := ledger.Award(context.Background(), "u1", "filler", "")
		require.NoError(t, err)
		require.Equal(t, domain.LevelFor(account.LifetimePoints), account.Level)
	}
}

func TestFailedAwardLeavesAccountUnchanged(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	before, err := ledger.Award(ctx, "u1", "cooldown", "")
	require.NoError(t, err)

	_, err = ledger.Award(ctx, "u1", "cooldown", "")
	require.Error(t, err)

	after, err := ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, before, after)
}

func TestInitializeIsIdempotent(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	created, err := ledger.Initialize(ctx, "u1", "Alice")
	require.NoError(t, err)
	require.Equal(t, 0, created.LifetimePoints)
	require.Equal(t, 1, created.Level)
	require.Equal(t, "Alice", created.Name)

	_, err = ledger.Award(ctx, "u1", "filler", "")
	require.NoError(t, err)

	again, err := ledger.Initialize(ctx, "u1", "Someone else")
	require.NoError(t, err)
	require.Equal(t, "Alice", again.Name)
	require.Equal(t, 10, again.LifetimePoints)
}

func TestRedeemKeepsLifetimePoints(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	_, err := ledger.Redeem(ctx, "ghost", 10)
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	_, err = ledger.Award(ctx, "u1", "onboarding", "")
	require.NoError(t, err)

	account, err := ledger.Redeem(ctx, "u1", 30)
	require.NoError(t, err)
	require.Equal(t, 70, account.CurrentPoints)
	require.Equal(t, 100, account.LifetimePoints)
	require.Equal(t, 2, account.Level)

	_, err = ledger.Redeem(ctx, "u1", 71)
	require.ErrorIs(t, err, domain.ErrInsufficientPoints)
	_, err = ledger.Redeem(ctx, "u1", 0)
	require.ErrorIs(t, err, domain.ErrInvalidAmount)

	stored, _ := ledger.GetAccount(ctx, "u1")
	require.Equal(t, 70, stored.CurrentPoints)
}

func TestConcurrentAwardsAreSerialized(t *testing.T) {
	ledger, _ := newTestLedger(t, newFakeClock())
	ctx := context.Background()

	const workers = 50
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := ledger.Award(ctx, "u1", "filler", "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	account, err := ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, workers*10, account.LifetimePoints)
	require.Equal(t, workers*10, account.CurrentPoints)
	require.Equal(t, workers, account.Version)
	require.Equal(t, workers, account.ActionStats["filler"].Count)

	seen := map[string]bool{}
	for _, u := range account.UnlockedAchievements {
		require.False(t, seen[u.AchievementID], "duplicate achievement %s", u.AchievementID)
		seen[u.AchievementID] = true
	}
	require.True(t, seen["first_steps"])
	require.True(t, seen["regular"])
}

type recordingListener struct {
	mu     sync.Mutex
	events []domain.AwardEvent
	err    error
}

func (l *recordingListener) OnAward(_ context.Context, event domain.AwardEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return l.err
}

func TestListenerFailureDoesNotRollBackAward(t *testing.T) {
	listener := &recordingListener{err: errors.New("community platform unavailable")}
	ledger, _ := newTestLedger(t, newFakeClock(), app.WithAwardListeners(listener), app.WithRecordIDs(func() string { return "rec-1" }))
	ctx := context.Background()

	account, err := ledger.Award(ctx, "u1", "onboarding", "")
	require.NoError(t, err)
	require.Equal(t, 100, account.LifetimePoints)

	require.Len(t, listener.events, 1)
	event := listener.events[0]
	require.Equal(t, "rec-1", event.RecordID)
	require.Equal(t, 100, event.Points)
	require.Equal(t, 2, event.Level)
	require.Len(t, event.Unlocked, 1)

	stored, err := ledger.GetAccount(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 100, stored.LifetimePoints)
}

func TestReevaluateUnlocksOnce(t *testing.T) {
	clock := newFakeClock()
	catalog, err := app.NewActionCatalog(testActions())
	require.NoError(t, err)
	store := memory.NewAccountStore()
	ctx := context.Background()

	// Award with no achievements configured, then re-evaluate against the full set.
	bare := app.NewPointsLedger(store, catalog, app.NewAchievementEngine(nil), app.WithLedgerClock(clock.Now))
	_, err = bare.Award(ctx, "u1", "onboarding", "")
	require.NoError(t, err)

	full := app.NewPointsLedger(store, catalog, app.NewAchievementEngine(app.DefaultAchievements()), app.WithLedgerClock(clock.Now))
	first, err := full.Reevaluate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, first.UnlockedAchievements, 1)

	second, err := full.Reevaluate(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, second.UnlockedAchievements, 1)
	require.Equal(t, first.Version, second.Version)

	_, err = full.Reevaluate(ctx, "ghost")
	require.ErrorIs(t, err, domain.ErrAccountNotFound)
}

type conflictingStore struct {
	*memory.AccountStore
	conflicts int
}

func (s *conflictingStore) Save(ctx context.Context, account domain.PointsAccount, expected int) error {
	if s.conflicts > 0 {
		s.conflicts--
		return domain.ErrVersionConflict
	}
	return s.AccountStore.Save(ctx, account, expected)
}

func TestAwardRetriesVersionConflicts(t *testing.T) {
	catalog, err := app.NewActionCatalog(testActions())
	require.NoError(t, err)
	ctx := context.Background()

	store := &conflictingStore{AccountStore: memory.NewAccountStore(), conflicts: 2}
	ledger := app.NewPointsLedger(store, catalog, app.NewAchievementEngine(nil))
	account, err := ledger.Award(ctx, "u1", "filler", "")
	require.NoError(t, err)
	require.Equal(t, 10, account.LifetimePoints)

	store.conflicts = 3
	_, err = ledger.Award(ctx, "u1", "filler", "")
	require.ErrorIs(t, err, domain.ErrVersionConflict)

	stored, _ := store.Get(ctx, "u1")
	require.Equal(t, 10, stored.LifetimePoints)
}
