package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hotelsync/internal/domain/queue"
)

type QueueRepository struct {
	pool *pgxpool.Pool
}

const queueColumns = `seq, id, action, entity_type, entity_id, payload, priority, created_at,
	retry_count, base_snapshot, parent_id, status, last_error, next_attempt_at, updated_at`

func (r *QueueRepository) Add(ctx context.Context, item *queue.Item) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sync_queue (id, action, entity_type, entity_id, payload, priority, created_at,
			retry_count, base_snapshot, parent_id, status, last_error, next_attempt_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING seq`,
		item.ID, string(item.Action), item.EntityType, item.EntityID, jsonArg(item.Payload), item.Priority,
		item.Timestamp, item.RetryCount, jsonArg(item.BaseSnapshot), nullString(item.ParentID),
		string(item.Status), item.LastError, nullTime(item.NextAttemptAt), item.UpdatedAt,
	).Scan(&item.Seq)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}
	return nil
}

func (r *QueueRepository) Get(ctx context.Context, id string) (*queue.Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE id = $1`, id)
	item, err := scanItem(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	return item, err
}

func (r *QueueRepository) List(ctx context.Context, filter queue.Filter) ([]*queue.Item, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.EntityType != "" {
		where = append(where, "entity_type = "+arg(filter.EntityType))
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = "+arg(filter.EntityID))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		where = append(where, "status = ANY("+arg(statuses)+")")
	}

	query := `SELECT ` + queueColumns + ` FROM sync_queue`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, seq"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *QueueRepository) Update(ctx context.Context, item *queue.Item) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE sync_queue
		SET action = $2, payload = $3, retry_count = $4, base_snapshot = $5, parent_id = $6,
		    status = $7, last_error = $8, next_attempt_at = $9, updated_at = $10
		WHERE id = $1`,
		item.ID, string(item.Action), jsonArg(item.Payload), item.RetryCount, jsonArg(item.BaseSnapshot),
		nullString(item.ParentID), string(item.Status), item.LastError, nullTime(item.NextAttemptAt), item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sync_queue WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return queue.ErrNotFound
	}
	return nil
}

func (r *QueueRepository) Children(ctx context.Context, parentID string) ([]*queue.Item, error) {
	return r.query(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE parent_id = $1 ORDER BY created_at, seq`, parentID)
}

func (r *QueueRepository) CountByStatus(ctx context.Context) (map[queue.Status]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count queue items: %w", err)
	}
	defer rows.Close()

	counts := make(map[queue.Status]int)
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[queue.Status(status)] = n
	}
	return counts, rows.Err()
}

func (r *QueueRepository) query(ctx context.Context, query string, args ...any) ([]*queue.Item, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue: %w", err)
	}
	defer rows.Close()

	var items []*queue.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanItem(row pgx.Row) (*queue.Item, error) {
	var (
		item           queue.Item
		action, status string
		payload, base  []byte
		parentID       *string
		next           *time.Time
	)

	err := row.Scan(&item.Seq, &item.ID, &action, &item.EntityType, &item.EntityID, &payload, &item.Priority,
		&item.Timestamp, &item.RetryCount, &base, &parentID, &status, &item.LastError, &next, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Action = queue.Action(action)
	item.Status = queue.Status(status)
	item.Payload = payload
	item.BaseSnapshot = base
	item.Timestamp = item.Timestamp.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	if parentID != nil {
		item.ParentID = *parentID
	}
	if next != nil {
		item.NextAttemptAt = next.UTC()
	}
	return &item, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
