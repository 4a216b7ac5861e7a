package domain

import (
	"math"
	"time"
)

// Category groups reward actions for reporting.
type Category string

const (
	CategoryEngagement Category = "engagement"
	CategoryContent    Category = "content"
	CategoryEvent      Category = "event"
	CategoryFeedback   Category = "feedback"
	CategoryReferral   Category = "referral"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryEngagement, CategoryContent, CategoryEvent, CategoryFeedback, CategoryReferral:
		return true
	}
	return false
}

// RewardAction defines how many points an activity is worth and how often it may be awarded.
// MaxOccurrences and Cooldown are unbounded when zero.
type RewardAction struct {
	ID               string        `json:"id"`
	Name             string        `json:"name"`
	PointValue       int           `json:"pointValue"`
	Category         Category      `json:"category"`
	IsEnabled        bool          `json:"isEnabled"`
	RequiresApproval bool          `json:"requiresApproval"`
	MaxOccurrences   int           `json:"maxOccurrences,omitempty"`
	Cooldown         time.Duration `json:"cooldown,omitempty"`
}

// Tier ranks achievements.
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
	TierSpecial  Tier = "special"
)

// Achievement is a one-time unlock. A nil PointThreshold means it is granted by other means.
type Achievement struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	PointThreshold *int   `json:"pointThreshold,omitempty"`
	Tier           Tier   `json:"tier"`
}

// UnlockedAchievement records when a user earned an achievement.
type UnlockedAchievement struct {
	AchievementID string    `json:"achievementId"`
	Name          string    `json:"name"`
	Tier          Tier      `json:"tier"`
	UnlockedAt    time.Time `json:"unlockedAt"`
}

// ActionRecord is one award in the recent activity log.
type ActionRecord struct {
	ID           string    `json:"id"`
	ActionID     string    `json:"actionId"`
	Timestamp    time.Time `json:"timestamp"`
	PointsEarned int       `json:"pointsEarned"`
	Notes        string    `json:"notes,omitempty"`
}

// ActionStats tracks every award of one action, independent of the recent log.
type ActionStats struct {
	Count         int       `json:"count"`
	LastAwardedAt time.Time `json:"lastAwardedAt"`
}

// PointsAccount is the per-user points ledger.
type PointsAccount struct {
	UserID               string                 `json:"userId"`
	Name                 string                 `json:"name"`
	CurrentPoints        int                    `json:"currentPoints"`
	LifetimePoints       int                    `json:"lifetimePoints"`
	Level                int                    `json:"level"`
	UnlockedAchievements []UnlockedAchievement  `json:"unlockedAchievements"`
	RecentActions        []ActionRecord         `json:"recentActions"`
	ActionStats          map[string]ActionStats `json:"actionStats"`
	Version              int                    `json:"version"`
	CreatedAt            time.Time              `json:"createdAt"`
	UpdatedAt            time.Time              `json:"updatedAt"`
}

// NewPointsAccount returns a zeroed account at level 1.
func NewPointsAccount(userID, name string, now time.Time) PointsAccount {
	return PointsAccount{
		UserID:               userID,
		Name:                 name,
		Level:                LevelFor(0),
		UnlockedAchievements: []UnlockedAchievement{},
		RecentActions:        []ActionRecord{},
		ActionStats:          map[string]ActionStats{},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// HasAchievement reports whether id is already unlocked.
func (a PointsAccount) HasAchievement(id string) bool {
	for _, u := range a.UnlockedAchievements {
		if u.AchievementID == id {
			return true
		}
	}
	return false
}

// LastActionAt returns the newest recent action timestamp, if any.
func (a PointsAccount) LastActionAt() *time.Time {
	if len(a.RecentActions) == 0 {
		return nil
	}
	ts := a.RecentActions[0].Timestamp
	return &ts
}

// Clone deep-copies the slices and maps so a mutation can be discarded on failure.
func (a PointsAccount) Clone() PointsAccount {
	out := a
	out.UnlockedAchievements = append([]UnlockedAchievement{}, a.UnlockedAchievements...)
	out.RecentActions = append([]ActionRecord{}, a.RecentActions...)
	out.ActionStats = make(map[string]ActionStats, len(a.ActionStats))
	for k, v := range a.ActionStats {
		out.ActionStats[k] = v
	}
	return out
}

// LevelFor computes floor(sqrt(lifetime/100)) + 1.
func LevelFor(lifetimePoints int) int {
	if lifetimePoints <= 0 {
		return 1
	}
	n := int(math.Sqrt(float64(lifetimePoints) / 100))
	// guard against float rounding on perfect squares
	for (n+1)*(n+1)*100 <= lifetimePoints {
		n++
	}
	for n > 0 && n*n*100 > lifetimePoints {
		n--
	}
	return n + 1
}

// AwardEvent is emitted to listeners after an award has been stored.
type AwardEvent struct {
	UserID         string                `json:"userId"`
	ActionID       string                `json:"actionId"`
	RecordID       string                `json:"recordId"`
	Points         int                   `json:"points"`
	LifetimePoints int                   `json:"lifetimePoints"`
	Level          int                   `json:"level"`
	Name           string                `json:"name"`
	Unlocked       []UnlockedAchievement `json:"unlocked,omitempty"`
	AwardedAt      time.Time             `json:"awardedAt"`
}
