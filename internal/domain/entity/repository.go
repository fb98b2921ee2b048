package entity

import "context"

type Repository interface {
	Get(ctx context.Context, entityType, entityID string) (*Snapshot, error)
	Upsert(ctx context.Context, snapshot *Snapshot) error
	Delete(ctx context.Context, entityType, entityID string) error
	// ReplaceType swaps every cached snapshot of entityType for the given set.
	ReplaceType(ctx context.Context, entityType string, snapshots []*Snapshot) error
	CountByType(ctx context.Context) (map[string]int, error)
}
