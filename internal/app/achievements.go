package app

import (
	"sort"
	"time"

	"gamification-service/internal/domain"
)

// AchievementEngine unlocks point-threshold achievements exactly once per user.
type AchievementEngine struct {
	achievements []domain.Achievement
}

// NewAchievementEngine keeps threshold achievements ordered by threshold; the rest are ignored.
func NewAchievementEngine(achievements []domain.Achievement) *AchievementEngine {
	eligible := make([]domain.Achievement, 0, len(achievements))
	for _, a := range achievements {
		if a.PointThreshold != nil {
			eligible = append(eligible, a)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		return *eligible[i].PointThreshold < *eligible[j].PointThreshold
	})
	return &AchievementEngine{achievements: eligible}
}

// Evaluate returns the achievements the account qualifies for but has not unlocked yet,
// stamped with now. It does not modify the account.
func (e *AchievementEngine) Evaluate(account domain.PointsAccount, now time.Time) []domain.UnlockedAchievement {
	var unlocked []domain.UnlockedAchievement
	for _, a := range e.achievements {
		if *a.PointThreshold > account.LifetimePoints {
			break
		}
		if account.HasAchievement(a.ID) {
			continue
		}
		unlocked = append(unlocked, domain.UnlockedAchievement{
			AchievementID: a.ID,
			Name:          a.Name,
			Tier:          a.Tier,
			UnlockedAt:    now,
		})
	}
	return unlocked
}

// mergeUnlocked appends unlocks to the account, skipping ids it already holds.
func mergeUnlocked(account *domain.PointsAccount, unlocked []domain.UnlockedAchievement) []domain.UnlockedAchievement {
	added := make([]domain.UnlockedAchievement, 0, len(unlocked))
	for _, u := range unlocked {
		if account.HasAchievement(u.AchievementID) {
			continue
		}
		account.UnlockedAchievements = append(account.UnlockedAchievements, u)
		added = append(added, u)
	}
	return added
}

func threshold(points int) *int { return &points }

// DefaultAchievements covers the point tiers plus special badges granted outside the engine.
func DefaultAchievements() []domain.Achievement {
	return []domain.Achievement{
		{ID: "first_steps", Name: "First Steps", Description: "Earn 100 lifetime points", PointThreshold: threshold(100), Tier: domain.TierBronze},
		{ID: "regular", Name: "Regular", Description: "Earn 500 lifetime points", PointThreshold: threshold(500), Tier: domain.TierSilver},
		{ID: "pillar", Name: "Community Pillar", Description: "Earn 1,000 lifetime points", PointThreshold: threshold(1000), Tier: domain.TierGold},
		{ID: "legend", Name: "Legend", Description: "Earn 5,000 lifetime points", PointThreshold: threshold(5000), Tier: domain.TierPlatinum},
		{ID: "founding_member", Name: "Founding Member", Description: "Joined during the founding cohort", Tier: domain.TierSpecial},
		{ID: "quiz_champion", Name: "Quiz Champion", Description: "Won a live quiz", Tier: domain.TierSpecial},
	}
}
