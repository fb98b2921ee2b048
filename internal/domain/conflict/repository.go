package conflict

import "context"

type Repository interface {
	Create(ctx context.Context, c *Conflict) error
	Get(ctx context.Context, id string) (*Conflict, error)
	// List returns open conflicts, oldest first.
	List(ctx context.Context) ([]*Conflict, error)
	// Take deletes and returns the conflict in one step, so only one caller
	// can resolve it.
	Take(ctx context.Context, id string) (*Conflict, error)
	Count(ctx context.Context) (int, error)
}
