package app

import (
	"context"
	"sort"
	"time"

	"gamification-service/internal/domain"
)

// Standing is one competitor to be ranked.
type Standing struct {
	UserID       string
	Name         string
	Score        int
	LastScoredAt *time.Time
}

// Rank orders standings by score descending, then by who reached it first. Standings without a
// timestamp follow those with one and keep their input order. Ranks run 1..N with no shared ranks.
func Rank(standings []Standing) []domain.LeaderboardEntry {
	sorted := append([]Standing(nil), standings...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		switch {
		case a.LastScoredAt != nil && b.LastScoredAt != nil:
			return a.LastScoredAt.Before(*b.LastScoredAt)
		case a.LastScoredAt != nil:
			return true
		default:
			return false
		}
	})

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = domain.LeaderboardEntry{
			UserID: s.UserID,
			Name:   s.Name,
			Score:  s.Score,
			Rank:   i + 1,
		}
	}
	return entries
}

const weeklyWindow = 7 * 24 * time.Hour

// LeaderboardService ranks points accounts for the community boards.
type LeaderboardService struct {
	accounts AccountRepository
	now      func() time.Time
}

func NewLeaderboardService(accounts AccountRepository, now func() time.Time) *LeaderboardService {
	if now == nil {
		now = time.Now
	}
	return &LeaderboardService{accounts: accounts, now: now}
}

// Community ranks every account by lifetime points.
func (s *LeaderboardService) Community(ctx context.Context, limit int) (domain.Leaderboard, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	standings := make([]Standing, 0, len(accounts))
	for _, a := range accounts {
		standings = append(standings, Standing{
			UserID:       a.UserID,
			Name:         a.Name,
			Score:        a.LifetimePoints,
			LastScoredAt: a.LastActionAt(),
		})
	}
	return s.board("community", standings, limit), nil
}

// Weekly ranks accounts by points earned in the trailing seven days of their recent activity.
// Accounts with nothing in the window are left out.
func (s *LeaderboardService) Weekly(ctx context.Context, limit int) (domain.Leaderboard, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return domain.Leaderboard{}, err
	}
	since := s.now().Add(-weeklyWindow)
	standings := make([]Standing, 0, len(accounts))
	for _, a := range accounts {
		points := 0
		var last *time.Time
		for _, rec := range a.RecentActions {
			if rec.Timestamp.Before(since) {
				break
			}
			points += rec.PointsEarned
			if last == nil {
				ts := rec.Timestamp
				last = &ts
			}
		}
		if last == nil {
			continue
		}
		standings = append(standings, Standing{UserID: a.UserID, Name: a.Name, Score: points, LastScoredAt: last})
	}
	return s.board("weekly", standings, limit), nil
}

func (s *LeaderboardService) board(id string, standings []Standing, limit int) domain.Leaderboard {
	entries := Rank(standings)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return domain.Leaderboard{ID: id, Entries: entries, UpdatedAt: s.now()}
}
