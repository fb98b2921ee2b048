package memory

import (
	"context"

	"hotelsync/internal/domain/entity"
)

type EntityRepository struct {
	s *Storage
}

func (r *EntityRepository) Get(_ context.Context, entityType, entityID string) (*entity.Snapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	snap, ok := r.s.snapshots[entity.Key{Type: entityType, ID: entityID}]
	if !ok {
		return nil, entity.ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

func (r *EntityRepository) Upsert(_ context.Context, snapshot *entity.Snapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.snapshots[snapshot.Key()] = cloneSnapshot(snapshot)
	return nil
}

func (r *EntityRepository) Delete(_ context.Context, entityType, entityID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := entity.Key{Type: entityType, ID: entityID}
	if _, ok := r.s.snapshots[key]; !ok {
		return entity.ErrNotFound
	}
	delete(r.s.snapshots, key)
	return nil
}

func (r *EntityRepository) ReplaceType(_ context.Context, entityType string, snapshots []*entity.Snapshot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for key := range r.s.snapshots {
		if key.Type == entityType {
			delete(r.s.snapshots, key)
		}
	}
	for _, snap := range snapshots {
		r.s.snapshots[snap.Key()] = cloneSnapshot(snap)
	}
	return nil
}

func (r *EntityRepository) CountByType(_ context.Context) (map[string]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[string]int)
	for key := range r.s.snapshots {
		counts[key.Type]++
	}
	return counts, nil
}

func cloneSnapshot(s *entity.Snapshot) *entity.Snapshot {
	out := *s
	out.Data = cloneRaw(s.Data)
	return &out
}
