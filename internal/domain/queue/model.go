package queue

import (
	"encoding/json"
	"time"

	"hotelsync/internal/domain/entity"
)

type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

func (a Action) Valid() bool {
	switch a {
	case ActionCreate, ActionUpdate, ActionDelete:
		return true
	}
	return false
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusSyncing    Status = "syncing"
	StatusFailed     Status = "failed"
	StatusConflicted Status = "conflicted"
)

// Item is one mutation made locally and waiting to be replayed on the backend.
type Item struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"seq"`
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   int             `json:"priority"`
	Timestamp  time.Time       `json:"timestamp"`
	RetryCount int             `json:"retry_count"`

	// BaseSnapshot is the server state the local edit was made against.
	BaseSnapshot json.RawMessage `json:"base_snapshot,omitempty"`
	// ParentID points at an earlier queued mutation of the same entity.
	ParentID      string    `json:"parent_id,omitempty"`
	Status        Status    `json:"status"`
	LastError     string    `json:"last_error,omitempty"`
	NextAttemptAt time.Time `json:"next_attempt_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (i *Item) Key() entity.Key {
	return entity.Key{Type: i.EntityType, ID: i.EntityID}
}

// ExpectedState is the server state once the item is applied.
func (i *Item) ExpectedState() json.RawMessage {
	if i.Action == ActionDelete {
		return nil
	}
	return i.Payload
}

// HasBase reports whether the item carries a base snapshot to check against.
func (i *Item) HasBase() bool {
	return len(i.BaseSnapshot) > 0
}

func (i *Item) Due(now time.Time) bool {
	return i.NextAttemptAt.IsZero() || !i.NextAttemptAt.After(now)
}

func (i *Item) Clone() *Item {
	c := *i
	c.Payload = cloneRaw(i.Payload)
	c.BaseSnapshot = cloneRaw(i.BaseSnapshot)
	return &c
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Statuses   []Status
	EntityType string
	EntityID   string
	Limit      int
}

// Matches applies the filter to a single item, for in-memory stores.
func (f Filter) Matches(i *Item) bool {
	if f.EntityType != "" && f.EntityType != i.EntityType {
		return false
	}
	if f.EntityID != "" && f.EntityID != i.EntityID {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if s == i.Status {
			return true
		}
	}
	return false
}

// Less is the replay order: enqueue timestamp, then enqueue sequence.
func Less(a, b *Item) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.Before(b.Timestamp)
	}
	return a.Seq < b.Seq
}

type EnqueueRequest struct {
	Action     Action          `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Priority   int             `json:"priority"`
	// BaseVersion is the server state the caller edited, if it knows it.
	BaseVersion json.RawMessage `json:"base_version,omitempty"`
}

type Config struct {
	MaxRetries    int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		RetryDelay:    2 * time.Second,
		MaxRetryDelay: 5 * time.Minute,
	}
}
