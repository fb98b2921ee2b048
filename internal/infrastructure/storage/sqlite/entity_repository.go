package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotelsync/internal/domain/entity"
)

type EntityRepository struct {
	db *sql.DB
}

func (r *EntityRepository) Get(ctx context.Context, entityType, entityID string) (*entity.Snapshot, error) {
	var (
		snap    = entity.Snapshot{EntityType: entityType, EntityID: entityID}
		blob    []byte
		fetched int64
	)

	err := r.db.QueryRowContext(ctx, `
		SELECT data, fingerprint, fetched_ns FROM entity_snapshots
		WHERE entity_type = ? AND entity_id = ?`, entityType, entityID,
	).Scan(&blob, &snap.Fingerprint, &fetched)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	if snap.Data, err = decompress(blob); err != nil {
		return nil, err
	}
	snap.FetchedAt = time.Unix(0, fetched).UTC()
	return &snap, nil
}

func (r *EntityRepository) Upsert(ctx context.Context, snap *entity.Snapshot) error {
	return upsertSnapshot(ctx, r.db, snap)
}

func (r *EntityRepository) Delete(ctx context.Context, entityType, entityID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM entity_snapshots WHERE entity_type = ? AND entity_id = ?`, entityType, entityID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	return expectOne(res, entity.ErrNotFound)
}

func (r *EntityRepository) ReplaceType(ctx context.Context, entityType string, snapshots []*entity.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM entity_snapshots WHERE entity_type = ?`, entityType); err != nil {
		return fmt.Errorf("clear %s snapshots: %w", entityType, err)
	}
	for _, snap := range snapshots {
		if err := upsertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (r *EntityRepository) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT entity_type, COUNT(*) FROM entity_snapshots GROUP BY entity_type`)
	if err != nil {
		return nil, fmt.Errorf("count snapshots: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			t string
			n int
		)
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[t] = n
	}
	return counts, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertSnapshot(ctx context.Context, db execer, snap *entity.Snapshot) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO entity_snapshots (entity_type, entity_id, data, fingerprint, fetched_ns)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET
			data = excluded.data,
			fingerprint = excluded.fingerprint,
			fetched_ns = excluded.fetched_ns`,
		snap.EntityType, snap.EntityID, compress(snap.Data), snap.Fingerprint, snap.FetchedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.Key(), err)
	}
	return nil
}
