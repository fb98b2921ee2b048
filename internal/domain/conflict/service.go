package conflict

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
)

// Servicer lists open conflicts and applies operator decisions to them.
type Servicer interface {
	Record(ctx context.Context, item *queue.Item, server json.RawMessage) (*Conflict, error)
	List(ctx context.Context) ([]*Conflict, error)
	Get(ctx context.Context, id string) (*Conflict, error)
	Resolve(ctx context.Context, id string, req ResolveRequest) (*Resolution, error)
	Count(ctx context.Context) (int, error)
}

// Queue is the part of the mutation store a resolution touches.
type Queue interface {
	Rebase(ctx context.Context, id string, action queue.Action, payload, base json.RawMessage) (*queue.Item, error)
	Drop(ctx context.Context, id string) error
}

// Cache receives the server version when the operator keeps it.
type Cache interface {
	Put(ctx context.Context, entityType, entityID string, data json.RawMessage) error
}

type Service struct {
	repo     Repository
	queue    Queue
	cache    Cache
	notifier queue.Notifier
	log      *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, q Queue, cache Cache, log *slog.Logger) *Service {
	return &Service{
		repo:  repo,
		queue: q,
		cache: cache,
		log:   log.With("component", "conflict_resolver"),
		now:   time.Now,
	}
}

func (s *Service) SetNotifier(n queue.Notifier) {
	s.notifier = n
}

// Record opens a conflict for item against the server state it ran into.
func (s *Service) Record(ctx context.Context, item *queue.Item, server json.RawMessage) (*Conflict, error) {
	c := &Conflict{
		ID:            uuid.NewString(),
		QueueItemID:   item.ID,
		EntityType:    item.EntityType,
		EntityID:      item.EntityID,
		Action:        item.Action,
		LocalVersion:  cloneRaw(item.Payload),
		BaseVersion:   cloneRaw(item.BaseSnapshot),
		ServerVersion: nil,
		Timestamp:     s.now().UTC(),
	}
	if !entity.IsNull(server) {
		canonical, err := entity.Canonical(server)
		if err != nil {
			return nil, fmt.Errorf("server version of %s: %w", item.Key(), err)
		}
		c.ServerVersion = canonical
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, fmt.Errorf("record conflict for %s: %w", item.ID, err)
	}

	s.log.Warn("conflict detected",
		"conflict_id", c.ID,
		"item_id", item.ID,
		"action", item.Action,
		"entity", item.Key().String(),
		"server_missing", c.ServerVersion == nil,
	)
	return c, nil
}

func (s *Service) List(ctx context.Context) ([]*Conflict, error) {
	return s.repo.List(ctx)
}

func (s *Service) Get(ctx context.Context, id string) (*Conflict, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

type plan struct {
	requeue bool
	action  queue.Action
	payload json.RawMessage
	base    json.RawMessage
	result  json.RawMessage
}

// Resolve applies the operator's strategy. The conflict is claimed before
// anything changes and put back if applying the decision fails, so a
// conflict is resolved at most once and never lost.
func (s *Service) Resolve(ctx context.Context, id string, req ResolveRequest) (*Resolution, error) {
	if !req.Strategy.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStrategy, req.Strategy)
	}

	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	p, err := s.plan(c, req)
	if err != nil {
		s.log.Info("resolution rejected", "conflict_id", id, "strategy", req.Strategy, "reason", err.Error())
		return nil, err
	}

	claimed, err := s.repo.Take(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := s.apply(ctx, claimed, p); err != nil {
		if rerr := s.repo.Create(ctx, claimed); rerr != nil {
			return nil, errors.Join(err, fmt.Errorf("restore conflict %s: %w", id, rerr))
		}
		return nil, err
	}

	s.log.Info("conflict resolved",
		"conflict_id", id,
		"item_id", c.QueueItemID,
		"entity", c.Key().String(),
		"strategy", req.Strategy,
	)

	if p.requeue && s.notifier != nil {
		s.notifier.Trigger()
	}

	return &Resolution{
		ConflictID:  id,
		QueueItemID: c.QueueItemID,
		Strategy:    req.Strategy,
		Requeued:    p.requeue,
		Result:      p.result,
	}, nil
}

func (s *Service) plan(c *Conflict, req ResolveRequest) (*plan, error) {
	serverMissing := entity.IsNull(c.ServerVersion)

	switch req.Strategy {
	case StrategyUseLocal:
		action := c.Action
		switch {
		case serverMissing && action == queue.ActionUpdate:
			action = queue.ActionCreate
		case !serverMissing && action == queue.ActionCreate:
			action = queue.ActionUpdate
		}
		return &plan{
			requeue: true,
			action:  action,
			payload: c.LocalVersion,
			base:    c.ServerVersion,
			result:  c.LocalVersion,
		}, nil

	case StrategyUseServer:
		return &plan{result: c.ServerVersion}, nil

	case StrategyMerge:
		if c.Action == queue.ActionDelete || serverMissing {
			return nil, ErrMergeUnsupported
		}

		var merged json.RawMessage
		if !entity.IsNull(req.Merged) {
			if !entity.IsObject(req.Merged) {
				return nil, ErrInvalidMerged
			}
			canonical, err := entity.Canonical(req.Merged)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidMerged, err)
			}
			merged = canonical
		} else {
			var err error
			if merged, err = Merge(c.BaseVersion, c.LocalVersion, c.ServerVersion); err != nil {
				return nil, err
			}
		}

		return &plan{
			requeue: true,
			action:  queue.ActionUpdate,
			payload: merged,
			base:    c.ServerVersion,
			result:  merged,
		}, nil
	}

	return nil, ErrInvalidStrategy
}

func (s *Service) apply(ctx context.Context, c *Conflict, p *plan) error {
	if p.requeue {
		if _, err := s.queue.Rebase(ctx, c.QueueItemID, p.action, p.payload, p.base); err != nil {
			return fmt.Errorf("requeue %s: %w", c.QueueItemID, err)
		}
		return nil
	}

	if err := s.cache.Put(ctx, c.EntityType, c.EntityID, c.ServerVersion); err != nil {
		return fmt.Errorf("cache server version of %s: %w", c.Key(), err)
	}
	if err := s.queue.Drop(ctx, c.QueueItemID); err != nil && !errors.Is(err, queue.ErrNotFound) {
		return fmt.Errorf("drop %s: %w", c.QueueItemID, err)
	}
	return nil
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage(nil), raw...)
}
