package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotelsync/internal/domain/queue"
)

type QueueRepository struct {
	db *sql.DB
}

const queueColumns = `seq, id, action, entity_type, entity_id, payload, priority, created_ns,
	retry_count, base_snapshot, parent_id, status, last_error, next_attempt_ns, updated_ns`

func (r *QueueRepository) Add(ctx context.Context, item *queue.Item) error {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_queue (id, action, entity_type, entity_id, payload, priority, created_ns,
			retry_count, base_snapshot, parent_id, status, last_error, next_attempt_ns, updated_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.Action, item.EntityType, item.EntityID, compress(item.Payload), item.Priority,
		item.Timestamp.UnixNano(), item.RetryCount, compress(item.BaseSnapshot), nullString(item.ParentID),
		item.Status, item.LastError, unixNano(item.NextAttemptAt), item.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert queue item: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("read queue seq: %w", err)
	}
	item.Seq = seq
	return nil
}

func (r *QueueRepository) Get(ctx context.Context, id string) (*queue.Item, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, queue.ErrNotFound
	}
	return item, err
}

func (r *QueueRepository) List(ctx context.Context, filter queue.Filter) ([]*queue.Item, error) {
	var (
		where []string
		args  []any
	)
	if filter.EntityType != "" {
		where = append(where, "entity_type = ?")
		args = append(args, filter.EntityType)
	}
	if filter.EntityID != "" {
		where = append(where, "entity_id = ?")
		args = append(args, filter.EntityID)
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			marks[i] = "?"
			args = append(args, s)
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `SELECT ` + queueColumns + ` FROM sync_queue`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_ns, seq"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return r.query(ctx, query, args...)
}

func (r *QueueRepository) Update(ctx context.Context, item *queue.Item) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE sync_queue
		SET action = ?, payload = ?, retry_count = ?, base_snapshot = ?, parent_id = ?,
		    status = ?, last_error = ?, next_attempt_ns = ?, updated_ns = ?
		WHERE id = ?`,
		item.Action, compress(item.Payload), item.RetryCount, compress(item.BaseSnapshot),
		nullString(item.ParentID), item.Status, item.LastError, unixNano(item.NextAttemptAt),
		item.UpdatedAt.UnixNano(), item.ID,
	)
	if err != nil {
		return fmt.Errorf("update queue item: %w", err)
	}
	return expectOne(res, queue.ErrNotFound)
}

func (r *QueueRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete queue item: %w", err)
	}
	return expectOne(res, queue.ErrNotFound)
}

func (r *QueueRepository) Children(ctx context.Context, parentID string) ([]*queue.Item, error) {
	return r.query(ctx, `SELECT `+queueColumns+` FROM sync_queue WHERE parent_id = ? ORDER BY created_ns, seq`, parentID)
}

func (r *QueueRepository) CountByStatus(ctx context.Context) (map[queue.Status]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_queue GROUP BY status`)
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
	rows, err := r.db.QueryContext(ctx, query, args...)
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

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(s scanner) (*queue.Item, error) {
	var (
		item                     queue.Item
		action, status           string
		payload, base            []byte
		parentID                 sql.NullString
		createdNs, nextNs, updNs int64
	)

	err := s.Scan(&item.Seq, &item.ID, &action, &item.EntityType, &item.EntityID, &payload, &item.Priority,
		&createdNs, &item.RetryCount, &base, &parentID, &status, &item.LastError, &nextNs, &updNs)
	if err != nil {
		return nil, err
	}

	if item.Payload, err = decompress(payload); err != nil {
		return nil, err
	}
	if item.BaseSnapshot, err = decompress(base); err != nil {
		return nil, err
	}

	item.Action = queue.Action(action)
	item.Status = queue.Status(status)
	item.ParentID = parentID.String
	item.Timestamp = time.Unix(0, createdNs).UTC()
	item.UpdatedAt = time.Unix(0, updNs).UTC()
	if nextNs != 0 {
		item.NextAttemptAt = time.Unix(0, nextNs).UTC()
	}
	return &item, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
