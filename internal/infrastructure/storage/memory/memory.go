// Package memory keeps the offline store in process memory. It backs tests
// and the "memory" storage driver; nothing survives a restart.
package memory

import (
	"sync"

	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
)

type Storage struct {
	mu sync.RWMutex

	items     map[string]*queue.Item
	seq       int64
	conflicts map[string]*conflict.Conflict
	snapshots map[entity.Key]*entity.Snapshot
}

func New() *Storage {
	return &Storage{
		items:     make(map[string]*queue.Item),
		conflicts: make(map[string]*conflict.Conflict),
		snapshots: make(map[entity.Key]*entity.Snapshot),
	}
}

func (s *Storage) Queue() queue.Repository {
	return &QueueRepository{s: s}
}

func (s *Storage) Conflicts() conflict.Repository {
	return &ConflictRepository{s: s}
}

func (s *Storage) Entities() entity.Repository {
	return &EntityRepository{s: s}
}

func (s *Storage) Close() error {
	return nil
}
