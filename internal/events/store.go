package events

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore writes events to the domain_events table.
type PGStore struct {
	Pool *pgxpool.Pool
}

// InsertEvent implements EventStore.
func (s PGStore) InsertEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (Event, error) {
	ev := Event{Topic: topic, AggregateID: aggregateID}
	err := s.Pool.QueryRow(ctx, `
INSERT INTO domain_events (topic, aggregate_id, payload)
VALUES ($1, $2, $3)
RETURNING id, payload, occurred_at`, topic, aggregateID, payload).Scan(&ev.ID, &ev.Payload, &ev.OccurredAt)
	return ev, err
}
