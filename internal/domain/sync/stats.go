package sync

import (
	"context"
	"errors"
	"fmt"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
)

// Stats projects the offline store into the counts shown to staff.
func (c *Coordinator) Stats(ctx context.Context) (*StorageStats, error) {
	byType, err := c.entities.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count cached entities: %w", err)
	}
	byStatus, err := c.queue.Counts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count queued items: %w", err)
	}
	conflicts, err := c.conflicts.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count conflicts: %w", err)
	}

	return &StorageStats{
		Orders:      byType[entity.TypeOrders],
		Bookings:    byType[entity.TypeBookings],
		MenuItems:   byType[entity.TypeMenuItems],
		CartItems:   byType[entity.TypeCartItems],
		PendingSync: byStatus[queue.StatusPending] + byStatus[queue.StatusSyncing],
		Failed:      byStatus[queue.StatusFailed],
		Conflicts:   conflicts,
		ByType:      byType,
	}, nil
}

// View returns the cached server state of one entity and the state it will
// have once every queued mutation lands.
func (c *Coordinator) View(ctx context.Context, entityType, entityID string) (*EntityView, error) {
	if err := entity.ValidateType(entityType); err != nil {
		return nil, err
	}

	view := &EntityView{EntityType: entityType, EntityID: entityID}

	snap, err := c.entities.Get(ctx, entityType, entityID)
	switch {
	case err == nil:
		view.Server = snap.Data
	case errors.Is(err, entity.ErrNotFound):
	default:
		return nil, fmt.Errorf("read cached snapshot: %w", err)
	}

	items, err := c.queue.List(ctx, queue.Filter{EntityType: entityType, EntityID: entityID})
	if err != nil {
		return nil, fmt.Errorf("list queued mutations: %w", err)
	}

	view.Queued = len(items)
	view.Local = view.Server
	if n := len(items); n > 0 {
		view.Local = items[n-1].ExpectedState()
	}
	view.Deleted = entity.IsNull(view.Local)

	if view.Server == nil && view.Queued == 0 {
		return nil, entity.ErrNotFound
	}
	return view, nil
}
