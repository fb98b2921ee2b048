package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/exp/slog"
)

// Record is one entity as returned by a backend listing.
type Record struct {
	ID   string
	Data json.RawMessage
}

// Servicer is the entity cache as seen by the queue, the resolver and the coordinator.
type Servicer interface {
	Get(ctx context.Context, entityType, entityID string) (*Snapshot, error)
	Put(ctx context.Context, entityType, entityID string, data json.RawMessage) error
	Replace(ctx context.Context, entityType string, records []Record) error
	Counts(ctx context.Context) (map[string]int, error)
}

type Service struct {
	repo Repository
	log  *slog.Logger
	now  func() time.Time
}

func NewService(repo Repository, log *slog.Logger) *Service {
	return &Service{
		repo: repo,
		log:  log.With("component", "entity_cache"),
		now:  time.Now,
	}
}

func (s *Service) Get(ctx context.Context, entityType, entityID string) (*Snapshot, error) {
	return s.repo.Get(ctx, entityType, entityID)
}

// Put stores the server state of an entity. A null state removes it from the cache.
func (s *Service) Put(ctx context.Context, entityType, entityID string, data json.RawMessage) error {
	if err := ValidateType(entityType); err != nil {
		return err
	}
	if entityID == "" {
		return ErrInvalidID
	}

	if IsNull(data) {
		if err := s.repo.Delete(ctx, entityType, entityID); err != nil && !errors.Is(err, ErrNotFound) {
			return fmt.Errorf("drop snapshot %s/%s: %w", entityType, entityID, err)
		}
		return nil
	}

	snap, err := s.snapshot(entityType, entityID, data)
	if err != nil {
		return err
	}

	if err := s.repo.Upsert(ctx, snap); err != nil {
		return fmt.Errorf("store snapshot %s/%s: %w", entityType, entityID, err)
	}
	return nil
}

// Replace refreshes the whole cached collection of entityType.
func (s *Service) Replace(ctx context.Context, entityType string, records []Record) error {
	if err := ValidateType(entityType); err != nil {
		return err
	}

	snaps := make([]*Snapshot, 0, len(records))
	for _, rec := range records {
		if rec.ID == "" {
			s.log.Warn("skipping backend record without id", "entity_type", entityType)
			continue
		}
		snap, err := s.snapshot(entityType, rec.ID, rec.Data)
		if err != nil {
			return err
		}
		snaps = append(snaps, snap)
	}

	if err := s.repo.ReplaceType(ctx, entityType, snaps); err != nil {
		return fmt.Errorf("replace %s snapshots: %w", entityType, err)
	}

	s.log.Debug("entity cache refreshed", "entity_type", entityType, "count", len(snaps))
	return nil
}

func (s *Service) Counts(ctx context.Context) (map[string]int, error) {
	return s.repo.CountByType(ctx)
}

func (s *Service) snapshot(entityType, entityID string, data json.RawMessage) (*Snapshot, error) {
	canonical, err := Canonical(data)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s/%s: %w", entityType, entityID, err)
	}
	fp, err := Fingerprint(canonical)
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		EntityType:  entityType,
		EntityID:    entityID,
		Data:        json.RawMessage(canonical),
		Fingerprint: fp,
		FetchedAt:   s.now().UTC(),
	}, nil
}
