package sync

import (
	"context"
	"encoding/json"

	"hotelsync/internal/domain/entity"
)

// Backend is the REST backend mutations are replayed against. Write calls
// carry the queue item id as idempotency key.
type Backend interface {
	Ping(ctx context.Context) error
	// Fetch returns the current server state, or nil when the entity does not exist.
	Fetch(ctx context.Context, entityType, entityID string) (json.RawMessage, error)
	Create(ctx context.Context, entityType, entityID string, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error)
	Update(ctx context.Context, entityType, entityID string, payload json.RawMessage, idempotencyKey string) (json.RawMessage, error)
	Delete(ctx context.Context, entityType, entityID string, idempotencyKey string) error
	List(ctx context.Context, entityType string) ([]entity.Record, error)
}
