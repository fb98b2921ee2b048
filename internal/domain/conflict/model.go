package conflict

import (
	"encoding/json"
	"time"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
)

type Strategy string

const (
	StrategyUseLocal  Strategy = "use_local"
	StrategyUseServer Strategy = "use_server"
	StrategyMerge     Strategy = "merge"
)

func (s Strategy) Valid() bool {
	switch s {
	case StrategyUseLocal, StrategyUseServer, StrategyMerge:
		return true
	}
	return false
}

// Conflict is a queued mutation whose base no longer matches the server.
type Conflict struct {
	ID          string       `json:"id"`
	QueueItemID string       `json:"queue_item_id"`
	EntityType  string       `json:"entity_type"`
	EntityID    string       `json:"entity_id"`
	Action      queue.Action `json:"action"`
	// LocalVersion is the queued payload, null for deletes.
	LocalVersion json.RawMessage `json:"local_version"`
	BaseVersion  json.RawMessage `json:"base_version,omitempty"`
	// ServerVersion is null when the server no longer has the entity.
	ServerVersion json.RawMessage `json:"server_version"`
	Timestamp     time.Time       `json:"timestamp"`
}

func (c *Conflict) Key() entity.Key {
	return entity.Key{Type: c.EntityType, ID: c.EntityID}
}

type ResolveRequest struct {
	Strategy Strategy `json:"strategy"`
	// Merged replaces the automatic merge when the operator edited the result.
	Merged json.RawMessage `json:"merged,omitempty"`
}

type Resolution struct {
	ConflictID  string          `json:"conflict_id"`
	QueueItemID string          `json:"queue_item_id"`
	Strategy    Strategy        `json:"strategy"`
	Requeued    bool            `json:"requeued"`
	Result      json.RawMessage `json:"result"`
}
