package queue

import "context"

type Repository interface {
	// Add stores a new item and assigns its Seq.
	Add(ctx context.Context, item *Item) error
	Get(ctx context.Context, id string) (*Item, error)
	// List returns matching items in replay order.
	List(ctx context.Context, filter Filter) ([]*Item, error)
	Update(ctx context.Context, item *Item) error
	Delete(ctx context.Context, id string) error
	Children(ctx context.Context, parentID string) ([]*Item, error)
	CountByStatus(ctx context.Context) (map[Status]int, error)
}
