package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gamification-service/internal/domain"
	"gamification-service/internal/infra/community"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	TypeCommunitySync = "community:sync"

	defaultMaxRetry = 10
)

// SyncEnqueuer queues every award for delivery to the community platform. It implements
// app.AwardListener; enqueue failures are reported to the ledger, which only logs them.
type SyncEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

// NewSyncEnqueuer queues on client; maxRetry <= 0 uses the default of 10.
func NewSyncEnqueuer(client *asynq.Client, maxRetry int) *SyncEnqueuer {
	if maxRetry <= 0 {
		maxRetry = defaultMaxRetry
	}
	return &SyncEnqueuer{client: client, maxRetry: maxRetry}
}

// NewSyncTask builds the task for one award. The award record id doubles as task id so the same
// award is never queued twice.
func NewSyncTask(event domain.AwardEvent, maxRetry int) (*asynq.Task, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCommunitySync, payload,
		asynq.MaxRetry(maxRetry),
		asynq.Queue("default"),
		asynq.TaskID(event.RecordID),
	), nil
}

func (e *SyncEnqueuer) OnAward(ctx context.Context, event domain.AwardEvent) error {
	task, err := NewSyncTask(event, e.maxRetry)
	if err != nil {
		return err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue community sync: %w", err)
	}
	zap.L().Debug("community sync queued", zap.String("task_id", info.ID), zap.String("user_id", event.UserID))
	return nil
}

// Pusher is the part of the community client the worker needs.
type Pusher interface {
	PushPoints(ctx context.Context, push community.PointsPush) error
	PushBadge(ctx context.Context, userID string, badge domain.UnlockedAchievement) error
}

// SyncWorker delivers queued awards. Returning an error makes asynq retry with backoff.
type SyncWorker struct {
	pusher Pusher
}

func NewSyncWorker(pusher Pusher) *SyncWorker {
	return &SyncWorker{pusher: pusher}
}

// Register mounts the worker's handlers.
func (w *SyncWorker) Register(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeCommunitySync, w.HandleCommunitySync)
}

func (w *SyncWorker) HandleCommunitySync(ctx context.Context, t *asynq.Task) error {
	var event domain.AwardEvent
	if err := json.Unmarshal(t.Payload(), &event); err != nil {
		return fmt.Errorf("decode community sync payload: %v: %w", err, asynq.SkipRetry)
	}

	err := w.pusher.PushPoints(ctx, community.PointsPush{
		UserID:         event.UserID,
		ActionID:       event.ActionID,
		ReferenceID:    event.RecordID,
		Points:         event.Points,
		LifetimePoints: event.LifetimePoints,
		Level:          event.Level,
		AwardedAt:      event.AwardedAt,
	})
	if err != nil {
		return err
	}
	for _, badge := range event.Unlocked {
		if err := w.pusher.PushBadge(ctx, event.UserID, badge); err != nil {
			return err
		}
	}
	zap.L().Info("community sync delivered",
		zap.String("user_id", event.UserID),
		zap.String("action_id", event.ActionID),
		zap.Int("badges", len(event.Unlocked)),
	)
	return nil
}

// NewServer builds the asynq worker server with failures logged through zap.
func NewServer(opt asynq.RedisClientOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			zap.L().Error("job failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
}
