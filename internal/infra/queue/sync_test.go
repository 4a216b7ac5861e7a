package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"gamification-service/internal/domain"
	"gamification-service/internal/infra/community"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
)

type fakePusher struct {
	points  []community.PointsPush
	badges  []string
	failErr error
}

func (f *fakePusher) PushPoints(_ context.Context, push community.PointsPush) error {
	if f.failErr != nil {
		return f.failErr
	}
	f.points = append(f.points, push)
	return nil
}

func (f *fakePusher) PushBadge(_ context.Context, _ string, badge domain.UnlockedAchievement) error {
	f.badges = append(f.badges, badge.AchievementID)
	return nil
}

func sampleEvent() domain.AwardEvent {
	return domain.AwardEvent{
		UserID:         "u1",
		ActionID:       "onboarding_completed",
		RecordID:       "rec-1",
		Points:         100,
		LifetimePoints: 100,
		Level:          2,
		Unlocked:       []domain.UnlockedAchievement{{AchievementID: "first_steps", Tier: domain.TierBronze}},
		AwardedAt:      time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}
}

func TestNewSyncTaskCarriesAward(t *testing.T) {
	task, err := NewSyncTask(sampleEvent(), 5)
	require.NoError(t, err)
	require.Equal(t, TypeCommunitySync, task.Type())

	var decoded domain.AwardEvent
	require.NoError(t, json.Unmarshal(task.Payload(), &decoded))
	require.Equal(t, "rec-1", decoded.RecordID)
	require.Len(t, decoded.Unlocked, 1)
}

func TestHandleCommunitySyncPushesPointsThenBadges(t *testing.T) {
	pusher := &fakePusher{}
	worker := NewSyncWorker(pusher)
	task, err := NewSyncTask(sampleEvent(), 5)
	require.NoError(t, err)

	require.NoError(t, worker.HandleCommunitySync(context.Background(), task))
	require.Len(t, pusher.points, 1)
	require.Equal(t, "rec-1", pusher.points[0].ReferenceID)
	require.Equal(t, 100, pusher.points[0].LifetimePoints)
	require.Equal(t, []string{"first_steps"}, pusher.badges)
}

func TestHandleCommunitySyncRetriesOnPushFailure(t *testing.T) {
	pusher := &fakePusher{failErr: errors.New("platform down")}
	task, _ := NewSyncTask(sampleEvent(), 5)

	err := NewSyncWorker(pusher).HandleCommunitySync(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))
	require.Empty(t, pusher.badges)
}

func TestHandleCommunitySyncSkipsRetryOnBadPayload(t *testing.T) {
	task := asynq.NewTask(TypeCommunitySync, []byte("not json"))
	err := NewSyncWorker(&fakePusher{}).HandleCommunitySync(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
}
