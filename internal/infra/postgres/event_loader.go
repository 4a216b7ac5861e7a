package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gamification-service/internal/domain"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// EventLoader loads live quiz event JSONB from Postgres.
type EventLoader struct {
	pool *pgxpool.Pool
}

func NewEventLoader(pool *pgxpool.Pool) *EventLoader {
	return &EventLoader{pool: pool}
}

func (l *EventLoader) LoadEvent(ctx context.Context, eventID string) (domain.LiveQuizEvent, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM live_quiz_events WHERE id=$1`, eventID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.LiveQuizEvent{}, domain.ErrEventNotFound
	}
	if err != nil {
		return domain.LiveQuizEvent{}, fmt.Errorf("load live quiz event: %w", err)
	}
	var event domain.LiveQuizEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return domain.LiveQuizEvent{}, fmt.Errorf("unmarshal live quiz event: %w", err)
	}
	event.ID = eventID
	return event, nil
}
