package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/queue"
)

type ConflictRepository struct {
	pool *pgxpool.Pool
}

const conflictColumns = `id, queue_item_id, entity_type, entity_id, action,
	local_version, base_version, server_version, created_at`

func (r *ConflictRepository) Create(ctx context.Context, c *conflict.Conflict) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO sync_conflicts (`+conflictColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.QueueItemID, c.EntityType, c.EntityID, string(c.Action),
		jsonArg(c.LocalVersion), jsonArg(c.BaseVersion), jsonArg(c.ServerVersion), c.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert conflict: %w", err)
	}
	return nil
}

func (r *ConflictRepository) Get(ctx context.Context, id string) (*conflict.Conflict, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts WHERE id = $1`, id)
	c, err := scanConflict(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conflict.ErrNotFound
	}
	return c, err
}

func (r *ConflictRepository) List(ctx context.Context) ([]*conflict.Conflict, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("query conflicts: %w", err)
	}
	defer rows.Close()

	var out []*conflict.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Take relies on DELETE ... RETURNING so concurrent resolvers cannot both win.
func (r *ConflictRepository) Take(ctx context.Context, id string) (*conflict.Conflict, error) {
	row := r.pool.QueryRow(ctx, `DELETE FROM sync_conflicts WHERE id = $1 RETURNING `+conflictColumns, id)
	c, err := scanConflict(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, conflict.ErrNotFound
	}
	return c, err
}

func (r *ConflictRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sync_conflicts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return n, nil
}

func scanConflict(row pgx.Row) (*conflict.Conflict, error) {
	var (
		c                   conflict.Conflict
		action              string
		local, base, server []byte
	)

	err := row.Scan(&c.ID, &c.QueueItemID, &c.EntityType, &c.EntityID, &action, &local, &base, &server, &c.Timestamp)
	if err != nil {
		return nil, err
	}

	c.Action = queue.Action(action)
	c.LocalVersion = local
	c.BaseVersion = base
	c.ServerVersion = server
	c.Timestamp = c.Timestamp.UTC()
	return &c, nil
}
