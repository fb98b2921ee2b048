package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"hotelsync/internal/domain/entity"
)

type EntityRepository struct {
	pool *pgxpool.Pool
}

func (r *EntityRepository) Get(ctx context.Context, entityType, entityID string) (*entity.Snapshot, error) {
	snap := entity.Snapshot{EntityType: entityType, EntityID: entityID}
	var data []byte

	err := r.pool.QueryRow(ctx, `
		SELECT data, fingerprint, fetched_at FROM entity_snapshots
		WHERE entity_type = $1 AND entity_id = $2`, entityType, entityID,
	).Scan(&data, &snap.Fingerprint, &snap.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	snap.Data = data
	snap.FetchedAt = snap.FetchedAt.UTC()
	return &snap, nil
}

const upsertSnapshot = `
	INSERT INTO entity_snapshots (entity_type, entity_id, data, fingerprint, fetched_at)
	VALUES ($1, $2, $3, $4, $5)
	ON CONFLICT (entity_type, entity_id) DO UPDATE SET
		data = EXCLUDED.data,
		fingerprint = EXCLUDED.fingerprint,
		fetched_at = EXCLUDED.fetched_at`

func (r *EntityRepository) Upsert(ctx context.Context, snap *entity.Snapshot) error {
	_, err := r.pool.Exec(ctx, upsertSnapshot,
		snap.EntityType, snap.EntityID, jsonArg(snap.Data), snap.Fingerprint, snap.FetchedAt)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s: %w", snap.Key(), err)
	}
	return nil
}

func (r *EntityRepository) Delete(ctx context.Context, entityType, entityID string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM entity_snapshots WHERE entity_type = $1 AND entity_id = $2`, entityType, entityID)
	if err != nil {
		return fmt.Errorf("delete snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrNotFound
	}
	return nil
}

func (r *EntityRepository) ReplaceType(ctx context.Context, entityType string, snapshots []*entity.Snapshot) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM entity_snapshots WHERE entity_type = $1`, entityType); err != nil {
		return fmt.Errorf("clear %s snapshots: %w", entityType, err)
	}

	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(upsertSnapshot, snap.EntityType, snap.EntityID, jsonArg(snap.Data), snap.Fingerprint, snap.FetchedAt)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("store %s snapshots: %w", entityType, err)
	}

	return tx.Commit(ctx)
}

func (r *EntityRepository) CountByType(ctx context.Context) (map[string]int, error) {
	rows, err := r.pool.Query(ctx, `SELECT entity_type, COUNT(*) FROM entity_snapshots GROUP BY entity_type`)
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
