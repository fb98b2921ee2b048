package memory

import (
	"context"
	"sort"

	"hotelsync/internal/domain/queue"
)

type QueueRepository struct {
	s *Storage
}

func (r *QueueRepository) Add(_ context.Context, item *queue.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	r.s.seq++
	item.Seq = r.s.seq
	r.s.items[item.ID] = item.Clone()
	return nil
}

func (r *QueueRepository) Get(_ context.Context, id string) (*queue.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	item, ok := r.s.items[id]
	if !ok {
		return nil, queue.ErrNotFound
	}
	return item.Clone(), nil
}

func (r *QueueRepository) List(_ context.Context, filter queue.Filter) ([]*queue.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	items := make([]*queue.Item, 0, len(r.s.items))
	for _, item := range r.s.items {
		if filter.Matches(item) {
			items = append(items, item.Clone())
		}
	}
	sort.Slice(items, func(i, j int) bool { return queue.Less(items[i], items[j]) })

	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, nil
}

func (r *QueueRepository) Update(_ context.Context, item *queue.Item) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[item.ID]; !ok {
		return queue.ErrNotFound
	}
	r.s.items[item.ID] = item.Clone()
	return nil
}

func (r *QueueRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.items[id]; !ok {
		return queue.ErrNotFound
	}
	delete(r.s.items, id)
	return nil
}

func (r *QueueRepository) Children(_ context.Context, parentID string) ([]*queue.Item, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	var children []*queue.Item
	for _, item := range r.s.items {
		if item.ParentID == parentID {
			children = append(children, item.Clone())
		}
	}
	sort.Slice(children, func(i, j int) bool { return queue.Less(children[i], children[j]) })
	return children, nil
}

func (r *QueueRepository) CountByStatus(_ context.Context) (map[queue.Status]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	counts := make(map[queue.Status]int)
	for _, item := range r.s.items {
		counts[item.Status]++
	}
	return counts, nil
}
