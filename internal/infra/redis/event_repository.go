package redis

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"time"

	"gamification-service/internal/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// EventLoader fetches live quiz events from a backing store (e.g., Postgres).
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.LiveQuizEvent, error)
}

// EventRepository caches events in Redis as JSON and falls back to a loader on cache miss.
// Events are stored as: SET live:event:{eventID} {json} EX ttl
type EventRepository struct {
	client *redis.Client
	loader EventLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
}

func NewEventRepository(client *redis.Client, loader EventLoader, ttl time.Duration) *EventRepository {
	return &EventRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (domain.LiveQuizEvent, error) {
	if event, ok := r.cached(ctx, eventID); ok {
		return event, nil
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if event, ok := r.cached(ctx, eventID); ok {
			return event, nil
		}

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.LiveQuizEvent{}, err
		}

		data, err := json.Marshal(event)
		if err != nil {
			return domain.LiveQuizEvent{}, err
		}
		if err := r.client.Set(ctx, eventKey(eventID), data, r.ttlWithJitter()).Err(); err != nil {
			// the event is still usable without the cache
			zap.L().Warn("cache live quiz event", zap.String("event_id", eventID), zap.Error(err))
		}
		return event, nil
	})
	if err != nil {
		return domain.LiveQuizEvent{}, err
	}
	return result.(domain.LiveQuizEvent), nil
}

func (r *EventRepository) cached(ctx context.Context, eventID string) (domain.LiveQuizEvent, bool) {
	data, err := r.client.Get(ctx, eventKey(eventID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			zap.L().Warn("read cached live quiz event", zap.String("event_id", eventID), zap.Error(err))
		}
		return domain.LiveQuizEvent{}, false
	}
	var event domain.LiveQuizEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return domain.LiveQuizEvent{}, false
	}
	return event, true
}

func (r *EventRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
