package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"hotelsync/internal/domain/entity"
)

// Servicer is the local mutation store.
type Servicer interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*Item, error)
	Get(ctx context.Context, id string) (*Item, error)
	List(ctx context.Context, filter Filter) ([]*Item, error)
	Pending(ctx context.Context) ([]*Item, error)
	MarkSyncing(ctx context.Context, item *Item) error
	Complete(ctx context.Context, item *Item, serverState json.RawMessage) error
	Fail(ctx context.Context, item *Item, cause error, permanent bool) (bool, error)
	Release(ctx context.Context, item *Item, cause error) error
	MarkConflicted(ctx context.Context, item *Item) error
	Rebase(ctx context.Context, id string, action Action, payload, base json.RawMessage) (*Item, error)
	Drop(ctx context.Context, id string) error
	Retry(ctx context.Context, id string) (*Item, error)
	Discard(ctx context.Context, id string) error
	Recover(ctx context.Context) (int, error)
	Counts(ctx context.Context) (map[Status]int, error)
}

// SnapshotSource yields the cached server state used as base for new mutations.
type SnapshotSource interface {
	Get(ctx context.Context, entityType, entityID string) (*entity.Snapshot, error)
}

// Notifier is told about new work, usually the sync coordinator.
type Notifier interface {
	Trigger()
}

type Service struct {
	repo      Repository
	snapshots SnapshotSource
	notifier  Notifier
	log       *slog.Logger
	cfg       Config
	now       func() time.Time
}

func NewService(repo Repository, snapshots SnapshotSource, log *slog.Logger, cfg Config) *Service {
	def := DefaultConfig()
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.MaxRetryDelay <= 0 {
		cfg.MaxRetryDelay = def.MaxRetryDelay
	}

	return &Service{
		repo:      repo,
		snapshots: snapshots,
		log:       log.With("component", "mutation_queue"),
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

func (s *Service) MaxRetries() int {
	return s.cfg.MaxRetries
}

// Enqueue validates a local mutation, captures its base snapshot and persists it.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (*Item, error) {
	if !req.Action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, req.Action)
	}
	if err := entity.ValidateType(req.EntityType); err != nil {
		return nil, err
	}
	if req.EntityID == "" {
		return nil, entity.ErrInvalidID
	}

	payload := req.Payload
	if req.Action == ActionDelete {
		payload = nil
	} else {
		if !entity.IsObject(payload) {
			return nil, fmt.Errorf("%w: %s needs a JSON object", ErrInvalidPayload, req.Action)
		}
		canonical, err := entity.Canonical(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		payload = canonical
	}

	now := s.now().UTC()
	item := &Item{
		ID:         uuid.NewString(),
		Action:     req.Action,
		EntityType: req.EntityType,
		EntityID:   req.EntityID,
		Payload:    payload,
		Priority:   req.Priority,
		Timestamp:  now,
		Status:     StatusPending,
		UpdatedAt:  now,
	}

	if err := s.captureBase(ctx, item, req.BaseVersion); err != nil {
		return nil, err
	}

	if err := s.repo.Add(ctx, item); err != nil {
		return nil, fmt.Errorf("enqueue %s %s: %w", item.Action, item.Key(), err)
	}

	s.log.Info("mutation queued",
		"item_id", item.ID,
		"action", item.Action,
		"entity", item.Key().String(),
		"parent_id", item.ParentID,
	)

	if s.notifier != nil {
		s.notifier.Trigger()
	}

	return item, nil
}

// captureBase chains the item behind the last queued mutation of the same
// entity, or takes the base from the caller or the entity cache.
func (s *Service) captureBase(ctx context.Context, item *Item, explicit json.RawMessage) error {
	queued, err := s.repo.List(ctx, Filter{EntityType: item.EntityType, EntityID: item.EntityID})
	if err != nil {
		return fmt.Errorf("look up queued mutations: %w", err)
	}
	if n := len(queued); n > 0 {
		parent := queued[n-1]
		item.ParentID = parent.ID
		item.BaseSnapshot = cloneRaw(parent.ExpectedState())
		return nil
	}

	if item.Action == ActionCreate {
		return nil
	}

	if !entity.IsNull(explicit) {
		canonical, err := entity.Canonical(explicit)
		if err != nil {
			return fmt.Errorf("%w: base version: %v", ErrInvalidPayload, err)
		}
		item.BaseSnapshot = canonical
		return nil
	}

	if s.snapshots == nil {
		return nil
	}
	snap, err := s.snapshots.Get(ctx, item.EntityType, item.EntityID)
	switch {
	case err == nil:
		item.BaseSnapshot = cloneRaw(snap.Data)
	case errors.Is(err, entity.ErrNotFound):
		s.log.Warn("no cached server state, mutation will be applied without a base check",
			"entity", item.Key().String())
	default:
		return fmt.Errorf("read cached snapshot: %w", err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, id string) (*Item, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]*Item, error) {
	return s.repo.List(ctx, filter)
}

// Pending returns the items a sync pass may replay, in replay order.
func (s *Service) Pending(ctx context.Context) ([]*Item, error) {
	return s.repo.List(ctx, Filter{Statuses: []Status{StatusPending, StatusSyncing}})
}

func (s *Service) MarkSyncing(ctx context.Context, item *Item) error {
	item.Status = StatusSyncing
	item.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, item)
}

// Complete removes an applied item and rebases the mutations queued behind it
// onto the state the server returned.
func (s *Service) Complete(ctx context.Context, item *Item, serverState json.RawMessage) error {
	children, err := s.repo.Children(ctx, item.ID)
	if err != nil {
		return fmt.Errorf("load children of %s: %w", item.ID, err)
	}

	var base json.RawMessage
	if !entity.IsNull(serverState) {
		if base, err = entity.Canonical(serverState); err != nil {
			return fmt.Errorf("server state of %s: %w", item.Key(), err)
		}
	}

	for _, child := range children {
		child.ParentID = ""
		child.BaseSnapshot = cloneRaw(base)
		child.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, child); err != nil {
			return fmt.Errorf("rebase child %s: %w", child.ID, err)
		}
	}

	if err := s.repo.Delete(ctx, item.ID); err != nil {
		return fmt.Errorf("remove applied item %s: %w", item.ID, err)
	}

	s.log.Debug("mutation applied", "item_id", item.ID, "entity", item.Key().String(), "rebased", len(children))
	return nil
}

// Fail records a failed attempt. It reports true when the item has moved to
// failed and needs an operator.
func (s *Service) Fail(ctx context.Context, item *Item, cause error, permanent bool) (bool, error) {
	now := s.now().UTC()

	item.RetryCount++
	item.UpdatedAt = now
	if cause != nil {
		item.LastError = cause.Error()
	}

	exhausted := permanent || item.RetryCount >= s.cfg.MaxRetries
	if exhausted {
		item.Status = StatusFailed
		item.NextAttemptAt = time.Time{}
	} else {
		item.Status = StatusPending
		item.NextAttemptAt = now.Add(s.backoff(item.RetryCount))
	}

	if err := s.repo.Update(ctx, item); err != nil {
		return exhausted, fmt.Errorf("record failure of %s: %w", item.ID, err)
	}

	if exhausted {
		s.log.Error("mutation failed permanently",
			"item_id", item.ID,
			"entity", item.Key().String(),
			"retry_count", item.RetryCount,
			"error", item.LastError,
		)
	} else {
		s.log.Warn("mutation failed, will retry",
			"item_id", item.ID,
			"entity", item.Key().String(),
			"retry_count", item.RetryCount,
			"next_attempt_at", item.NextAttemptAt,
			"error", item.LastError,
		)
	}

	return exhausted, nil
}

func (s *Service) backoff(retry int) time.Duration {
	d := s.cfg.RetryDelay
	for i := 1; i < retry; i++ {
		d *= 2
		if d >= s.cfg.MaxRetryDelay {
			return s.cfg.MaxRetryDelay
		}
	}
	return d
}

// Release returns an item to pending after an attempt that never reached the
// backend. It does not count as a retry.
func (s *Service) Release(ctx context.Context, item *Item, cause error) error {
	item.Status = StatusPending
	item.UpdatedAt = s.now().UTC()
	if cause != nil {
		item.LastError = cause.Error()
	}
	return s.repo.Update(ctx, item)
}

func (s *Service) MarkConflicted(ctx context.Context, item *Item) error {
	item.Status = StatusConflicted
	item.UpdatedAt = s.now().UTC()
	return s.repo.Update(ctx, item)
}

// Rebase puts a conflicted item back into the replay queue with a new base.
func (s *Service) Rebase(ctx context.Context, id string, action Action, payload, base json.RawMessage) (*Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !action.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}

	item.Action = action
	item.Payload = cloneRaw(payload)
	if action == ActionDelete {
		item.Payload = nil
	}
	item.BaseSnapshot = nil
	if !entity.IsNull(base) {
		item.BaseSnapshot = cloneRaw(base)
	}
	item.ParentID = ""
	item.Status = StatusPending
	item.RetryCount = 0
	item.LastError = ""
	item.NextAttemptAt = time.Time{}
	item.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("rebase %s: %w", id, err)
	}

	s.log.Info("mutation rebased", "item_id", id, "action", action, "entity", item.Key().String())
	s.trigger()
	return item, nil
}

// Drop removes an item without applying it. Mutations queued behind it keep
// the base they were made on, so they conflict instead of silently landing.
func (s *Service) Drop(ctx context.Context, id string) error {
	children, err := s.repo.Children(ctx, id)
	if err != nil {
		return fmt.Errorf("load children of %s: %w", id, err)
	}
	for _, child := range children {
		child.ParentID = ""
		child.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, child); err != nil {
			return fmt.Errorf("detach child %s: %w", child.ID, err)
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.log.Info("mutation dropped", "item_id", id, "detached", len(children))
	return nil
}

// Retry gives a failed item a fresh set of attempts.
func (s *Service) Retry(ctx context.Context, id string) (*Item, error) {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Status != StatusFailed {
		return nil, fmt.Errorf("%w: item is %s", ErrInvalidState, item.Status)
	}

	item.Status = StatusPending
	item.RetryCount = 0
	item.LastError = ""
	item.NextAttemptAt = time.Time{}
	item.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("retry %s: %w", id, err)
	}

	s.trigger()
	return item, nil
}

// Discard is the operator giving up on a pending or failed item. Conflicted
// items go through conflict resolution instead.
func (s *Service) Discard(ctx context.Context, id string) error {
	item, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if item.Status != StatusFailed && item.Status != StatusPending {
		return fmt.Errorf("%w: item is %s", ErrInvalidState, item.Status)
	}

	return s.Drop(ctx, id)
}

// Recover returns items interrupted mid-request to pending. The replay checks
// the server state first, so an interrupted item is not applied twice.
func (s *Service) Recover(ctx context.Context) (int, error) {
	stuck, err := s.repo.List(ctx, Filter{Statuses: []Status{StatusSyncing}})
	if err != nil {
		return 0, fmt.Errorf("list interrupted items: %w", err)
	}

	for _, item := range stuck {
		item.Status = StatusPending
		item.UpdatedAt = s.now().UTC()
		if err := s.repo.Update(ctx, item); err != nil {
			return 0, fmt.Errorf("recover %s: %w", item.ID, err)
		}
	}

	if len(stuck) > 0 {
		s.log.Info("recovered interrupted mutations", "count", len(stuck))
	}
	return len(stuck), nil
}

func (s *Service) Counts(ctx context.Context) (map[Status]int, error) {
	return s.repo.CountByStatus(ctx)
}

func (s *Service) trigger() {
	if s.notifier != nil {
		s.notifier.Trigger()
	}
}
