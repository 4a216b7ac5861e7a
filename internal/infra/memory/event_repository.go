package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"gamification-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// EventLoader fetches live quiz events from a backing store (e.g., Postgres).
type EventLoader interface {
	LoadEvent(ctx context.Context, eventID string) (domain.LiveQuizEvent, error)
}

// EventRepository caches events with TTL to avoid repeated DB hits.
type EventRepository struct {
	loader EventLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu    sync.RWMutex
	cache map[string]cachedEvent
}

type cachedEvent struct {
	event     domain.LiveQuizEvent
	expiresAt time.Time
}

func NewEventRepository(loader EventLoader, ttl time.Duration) *EventRepository {
	return &EventRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedEvent),
	}
}

func (r *EventRepository) GetEvent(ctx context.Context, eventID string) (domain.LiveQuizEvent, error) {
	if event, ok := r.cached(eventID); ok {
		return event, nil
	}

	result, err, _ := r.sf.Do(eventID, func() (interface{}, error) {
		if event, ok := r.cached(eventID); ok {
			return event, nil
		}

		event, err := r.loader.LoadEvent(ctx, eventID)
		if err != nil {
			return domain.LiveQuizEvent{}, err
		}

		expiresAt := r.clock().Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[eventID] = cachedEvent{event: event, expiresAt: expiresAt}
		r.mu.Unlock()
		return event, nil
	})
	if err != nil {
		return domain.LiveQuizEvent{}, err
	}
	return result.(domain.LiveQuizEvent), nil
}

func (r *EventRepository) cached(eventID string) (domain.LiveQuizEvent, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[eventID]; ok && entry.expiresAt.After(now) {
		return entry.event, true
	}
	return domain.LiveQuizEvent{}, false
}

// StaticEventLoader is a simple loader backed by an in-memory map (useful for tests/demos).
type StaticEventLoader struct {
	events map[string]domain.LiveQuizEvent
}

func NewStaticEventLoader(events map[string]domain.LiveQuizEvent) *StaticEventLoader {
	return &StaticEventLoader{events: events}
}

func (l *StaticEventLoader) LoadEvent(_ context.Context, eventID string) (domain.LiveQuizEvent, error) {
	if event, ok := l.events[eventID]; ok {
		return event, nil
	}
	return domain.LiveQuizEvent{}, domain.ErrEventNotFound
}

func (r *EventRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
