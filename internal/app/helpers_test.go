package app_test

import (
	"sync"
	"testing"
	"time"

	"gamification-service/internal/app"
	"gamification-service/internal/domain"
	"gamification-service/internal/infra/memory"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func testActions() []domain.RewardAction {
	return []domain.RewardAction{
		{ID: "filler", Name: "Filler", PointValue: 10, Category: domain.CategoryEngagement, IsEnabled: true},
		{ID: "onboarding", Name: "Onboarding", PointValue: 100, Category: domain.CategoryEngagement, IsEnabled: true, MaxOccurrences: 1},
		{ID: "cooldown", Name: "Cooldown", PointValue: 5, Category: domain.CategoryFeedback, IsEnabled: true, Cooldown: time.Hour},
		{ID: "capped", Name: "Capped", PointValue: 1, Category: domain.CategoryReferral, IsEnabled: true, MaxOccurrences: 3},
		{ID: "off", Name: "Off", PointValue: 50, Category: domain.CategoryContent, IsEnabled: false},
		{ID: app.ActionWeeklyQuizCompleted, Name: "Weekly quiz", PointValue: 25, Category: domain.CategoryEngagement, IsEnabled: true, Cooldown: 6 * 24 * time.Hour},
		{ID: app.ActionBrainTeaserSolved, Name: "Brain teaser", PointValue: 10, Category: domain.CategoryEngagement, IsEnabled: true, Cooldown: 20 * time.Hour},
		{ID: app.ActionLiveQuizPodium, Name: "Podium", PointValue: 40, Category: domain.CategoryEvent, IsEnabled: true},
	}
}

func newTestLedger(t *testing.T, clock *fakeClock, opts ...app.LedgerOption) (*app.PointsLedger, *memory.AccountStore) {
	t.Helper()
	catalog, err := app.NewActionCatalog(testActions())
	require.NoError(t, err)
	store := memory.NewAccountStore()
	opts = append([]app.LedgerOption{app.WithLedgerClock(clock.Now)}, opts...)
	return app.NewPointsLedger(store, catalog, app.NewAchievementEngine(app.DefaultAchievements()), opts...), store
}
