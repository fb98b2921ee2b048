package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"hotelsync/internal/domain/conflict"
)

type ConflictRepository struct {
	s *Storage
}

func (r *ConflictRepository) Create(_ context.Context, c *conflict.Conflict) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.conflicts[c.ID]; ok {
		return fmt.Errorf("conflict %s already exists", c.ID)
	}
	r.s.conflicts[c.ID] = cloneConflict(c)
	return nil
}

func (r *ConflictRepository) Get(_ context.Context, id string) (*conflict.Conflict, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	c, ok := r.s.conflicts[id]
	if !ok {
		return nil, conflict.ErrNotFound
	}
	return cloneConflict(c), nil
}

func (r *ConflictRepository) List(_ context.Context) ([]*conflict.Conflict, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]*conflict.Conflict, 0, len(r.s.conflicts))
	for _, c := range r.s.conflicts {
		out = append(out, cloneConflict(c))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *ConflictRepository) Take(_ context.Context, id string) (*conflict.Conflict, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c, ok := r.s.conflicts[id]
	if !ok {
		return nil, conflict.ErrNotFound
	}
	delete(r.s.conflicts, id)
	return c, nil
}

func (r *ConflictRepository) Count(_ context.Context) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	return len(r.s.conflicts), nil
}

func cloneConflict(c *conflict.Conflict) *conflict.Conflict {
	out := *c
	out.LocalVersion = cloneRaw(c.LocalVersion)
	out.BaseVersion = cloneRaw(c.BaseVersion)
	out.ServerVersion = cloneRaw(c.ServerVersion)
	return &out
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
