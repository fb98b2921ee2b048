package entity

import (
	"encoding/json"
	"time"
)

// Entity types counted by the offline storage stats.
const (
	TypeOrders    = "orders"
	TypeBookings  = "bookings"
	TypeMenuItems = "menu_items"
	TypeCartItems = "cart_items"
)

var KnownTypes = []string{TypeOrders, TypeBookings, TypeMenuItems, TypeCartItems}

// Key identifies one entity on the backend.
type Key struct {
	Type string `json:"entity_type"`
	ID   string `json:"entity_id"`
}

func (k Key) String() string {
	return k.Type + "/" + k.ID
}

// Snapshot is the last server state of an entity seen by this agent.
type Snapshot struct {
	EntityType  string          `json:"entity_type"`
	EntityID    string          `json:"entity_id"`
	Data        json.RawMessage `json:"data"`
	Fingerprint string          `json:"fingerprint"`
	FetchedAt   time.Time       `json:"fetched_at"`
}

func (s *Snapshot) Key() Key {
	return Key{Type: s.EntityType, ID: s.EntityID}
}
