// Package outbox drains order events written transactionally alongside
// state changes and publishes them to Kafka. Publish failures leave rows
// unprocessed for the next tick, so delivery is at-least-once.
package outbox

import (
	"context"
	"time"
)

type Event struct {
	ID          int64
	AggregateID string
	EventType   string
	Payload     []byte
	CreatedAt   time.Time
	ProcessedAt *time.Time
}

type Repository interface {
	GetUnprocessedEvents(ctx context.Context, limit int) ([]*Event, error)
	MarkEventProcessed(ctx context.Context, id int64) error
}
