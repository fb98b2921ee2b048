package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/queue"
)

type ConflictRepository struct {
	db *sql.DB
}

const conflictColumns = `id, queue_item_id, entity_type, entity_id, action,
	local_version, base_version, server_version, created_ns`

func (r *ConflictRepository) Create(ctx context.Context, c *conflict.Conflict) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_conflicts (`+conflictColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.QueueItemID, c.EntityType, c.EntityID, c.Action,
		compress(c.LocalVersion), compress(c.BaseVersion), compress(c.ServerVersion),
		c.Timestamp.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert conflict: %w", err)
	}
	return nil
}

func (r *ConflictRepository) Get(ctx context.Context, id string) (*conflict.Conflict, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts WHERE id = ?`, id)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conflict.ErrNotFound
	}
	return c, err
}

func (r *ConflictRepository) List(ctx context.Context) ([]*conflict.Conflict, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+conflictColumns+` FROM sync_conflicts ORDER BY created_ns, id`)
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

func (r *ConflictRepository) Take(ctx context.Context, id string) (*conflict.Conflict, error) {
	row := r.db.QueryRowContext(ctx, `DELETE FROM sync_conflicts WHERE id = ? RETURNING `+conflictColumns, id)
	c, err := scanConflict(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, conflict.ErrNotFound
	}
	return c, err
}

func (r *ConflictRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_conflicts`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count conflicts: %w", err)
	}
	return n, nil
}

func scanConflict(s scanner) (*conflict.Conflict, error) {
	var (
		c                   conflict.Conflict
		action              string
		local, base, server []byte
		createdNs           int64
	)

	err := s.Scan(&c.ID, &c.QueueItemID, &c.EntityType, &c.EntityID, &action, &local, &base, &server, &createdNs)
	if err != nil {
		return nil, err
	}

	if c.LocalVersion, err = decompress(local); err != nil {
		return nil, err
	}
	if c.BaseVersion, err = decompress(base); err != nil {
		return nil, err
	}
	if c.ServerVersion, err = decompress(server); err != nil {
		return nil, err
	}

	c.Action = queue.Action(action)
	c.Timestamp = time.Unix(0, createdNs).UTC()
	return &c, nil
}
