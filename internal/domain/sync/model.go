package sync

import (
	"encoding/json"
	"time"
)

type EventType string

const (
	EventStarted        EventType = "started"
	EventItemApplied    EventType = "item_applied"
	EventItemFailed     EventType = "item_failed"
	EventItemConflicted EventType = "item_conflicted"
	EventItemSkipped    EventType = "item_skipped"
	EventCompleted      EventType = "completed"
	EventConnectivity   EventType = "connectivity"
)

// Event reports sync progress to subscribers.
type Event struct {
	Type       EventType `json:"type"`
	ItemID     string    `json:"item_id,omitempty"`
	Action     string    `json:"action,omitempty"`
	EntityType string    `json:"entity_type,omitempty"`
	EntityID   string    `json:"entity_id,omitempty"`
	ConflictID string    `json:"conflict_id,omitempty"`
	// Final is set on item_failed once the item will not be retried automatically.
	Final     bool      `json:"final,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Processed int       `json:"processed"`
	Total     int       `json:"total"`
	Percent   float64   `json:"percent"`
	Online    bool      `json:"online"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Result summarises one sync pass.
type Result struct {
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	Total          int       `json:"total"`
	Applied        int       `json:"applied"`
	AlreadyApplied int       `json:"already_applied"`
	Conflicted     int       `json:"conflicted"`
	Retrying       int       `json:"retrying"`
	Failed         int       `json:"failed"`
	Skipped        int       `json:"skipped"`
	// Interrupted is set when the backend dropped out or the pass was cancelled.
	Interrupted bool   `json:"interrupted"`
	Error       string `json:"error,omitempty"`
}

func (r *Result) Processed() int {
	return r.Applied + r.AlreadyApplied + r.Conflicted + r.Retrying + r.Failed + r.Skipped
}

type Status struct {
	Online     bool      `json:"online"`
	Running    bool      `json:"running"`
	LastSyncAt time.Time `json:"last_sync_at"`
	LastResult *Result   `json:"last_result,omitempty"`
}

// StorageStats is a read-only projection of the offline store.
type StorageStats struct {
	Orders      int            `json:"orders"`
	Bookings    int            `json:"bookings"`
	MenuItems   int            `json:"menu_items"`
	CartItems   int            `json:"cart_items"`
	PendingSync int            `json:"pending_sync"`
	Failed      int            `json:"failed"`
	Conflicts   int            `json:"conflicts"`
	ByType      map[string]int `json:"by_type"`
}

// EntityView is what the operator sees locally: the cached server state with
// queued mutations applied on top.
type EntityView struct {
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Server     json.RawMessage `json:"server"`
	Local      json.RawMessage `json:"local"`
	Deleted    bool            `json:"deleted"`
	Queued     int             `json:"queued"`
}

type Config struct {
	// Interval between automatic passes; zero disables the timer.
	Interval time.Duration
	// RefreshTypes re-lists entity types touched by a pass.
	RefreshTypes bool
}

func DefaultConfig() Config {
	return Config{
		Interval:     30 * time.Second,
		RefreshTypes: true,
	}
}
