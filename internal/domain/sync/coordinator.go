package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	stdsync "sync"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"

	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
)

// Servicer is the sync coordinator as used by the API and the CLI.
type Servicer interface {
	Sync(ctx context.Context) (*Result, error)
	Trigger()
	SetOnline(online bool)
	Online() bool
	Status() Status
	Subscribe(buffer int) (<-chan Event, func())
	Stats(ctx context.Context) (*StorageStats, error)
	View(ctx context.Context, entityType, entityID string) (*EntityView, error)
}

type Coordinator struct {
	queue     queue.Servicer
	conflicts conflict.Servicer
	entities  entity.Servicer
	backend   Backend
	detector  conflict.Detector
	log       *slog.Logger
	cfg       Config

	online  atomic.Bool
	running stdsync.Mutex
	trigger chan struct{}
	events  *broadcaster

	statusMu   stdsync.RWMutex
	busy       bool
	lastSyncAt time.Time
	lastResult *Result

	now func() time.Time
}

func NewCoordinator(
	q queue.Servicer,
	conflicts conflict.Servicer,
	entities entity.Servicer,
	backend Backend,
	log *slog.Logger,
	cfg Config,
) *Coordinator {
	return &Coordinator{
		queue:     q,
		conflicts: conflicts,
		entities:  entities,
		backend:   backend,
		log:       log.With("component", "sync_coordinator"),
		cfg:       cfg,
		trigger:   make(chan struct{}, 1),
		events:    newBroadcaster(),
		now:       time.Now,
	}
}

// Trigger asks Run for a pass. It never blocks.
func (c *Coordinator) Trigger() {
	select {
	case c.trigger <- struct{}{}:
	default:
	}
}

// SetOnline records a connectivity change; going online starts a pass.
func (c *Coordinator) SetOnline(online bool) {
	if c.online.Swap(online) == online {
		return
	}

	c.log.Info("connectivity changed", "online", online)
	c.events.publish(Event{Type: EventConnectivity, Online: online, Timestamp: c.now().UTC()})

	if online {
		c.Trigger()
	}
}

func (c *Coordinator) Online() bool {
	return c.online.Load()
}

func (c *Coordinator) Subscribe(buffer int) (<-chan Event, func()) {
	return c.events.subscribe(buffer)
}

func (c *Coordinator) Status() Status {
	c.statusMu.RLock()
	defer c.statusMu.RUnlock()

	return Status{
		Online:     c.Online(),
		Running:    c.busy,
		LastSyncAt: c.lastSyncAt,
		LastResult: c.lastResult,
	}
}

// Run performs a pass on every trigger and on the configured interval until
// ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	if n, err := c.queue.Recover(ctx); err != nil {
		return fmt.Errorf("recover queue: %w", err)
	} else if n > 0 {
		c.Trigger()
	}

	var tick <-chan time.Time
	if c.cfg.Interval > 0 {
		ticker := time.NewTicker(c.cfg.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	c.log.Info("sync coordinator started", "interval", c.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			c.log.Info("sync coordinator stopped")
			return nil
		case <-c.trigger:
		case <-tick:
		}

		if !c.Online() {
			continue
		}

		_, err := c.Sync(ctx)
		switch {
		case err == nil, errors.Is(err, ErrOffline), errors.Is(err, ErrSyncInProgress):
		case errors.Is(err, context.Canceled):
			return nil
		default:
			c.log.Error("sync pass failed", "error", err)
		}
	}
}

type pass struct {
	res     *Result
	blocked map[entity.Key]bool
	touched map[string]struct{}
}

// Sync replays the queue once, in enqueue order, one request per item.
func (c *Coordinator) Sync(ctx context.Context) (*Result, error) {
	if !c.Online() {
		return nil, ErrOffline
	}
	if !c.running.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer c.running.Unlock()

	c.setBusy(true)
	defer c.setBusy(false)

	items, err := c.queue.Pending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending items: %w", err)
	}

	p := &pass{
		res:     &Result{StartedAt: c.now().UTC(), Total: len(items)},
		blocked: make(map[entity.Key]bool),
		touched: make(map[string]struct{}),
	}

	// Entities with a failed or conflicted item wait for the operator, so later
	// mutations of the same entity never overtake it.
	stuck, err := c.queue.List(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusFailed, queue.StatusConflicted}})
	if err != nil {
		return nil, fmt.Errorf("load blocked items: %w", err)
	}
	for _, item := range stuck {
		p.blocked[item.Key()] = true
	}

	c.log.Info("sync started", "items", len(items), "blocked_entities", len(p.blocked))
	c.emit(p, Event{Type: EventStarted})

	var passErr error
	for _, queued := range items {
		if err := ctx.Err(); err != nil {
			passErr = err
			break
		}

		// Earlier items in this pass may have rebased this one.
		item, err := c.queue.Get(ctx, queued.ID)
		if errors.Is(err, queue.ErrNotFound) {
			p.res.Total--
			continue
		}
		if err != nil {
			passErr = fmt.Errorf("reload %s: %w", queued.ID, err)
			break
		}

		if reason := c.skipReason(p, item); reason != "" {
			p.blocked[item.Key()] = true
			p.res.Skipped++
			c.emit(p, itemEvent(EventItemSkipped, item, func(e *Event) { e.Reason = reason }))
			continue
		}

		if err := c.replay(ctx, p, item); err != nil {
			passErr = err
			break
		}
	}

	c.refresh(ctx, p)

	p.res.FinishedAt = c.now().UTC()
	if passErr != nil {
		p.res.Interrupted = true
		p.res.Error = passErr.Error()
	}
	c.finish(p.res)
	c.emit(p, Event{Type: EventCompleted, Error: p.res.Error})

	c.log.Info("sync finished",
		"total", p.res.Total,
		"applied", p.res.Applied,
		"already_applied", p.res.AlreadyApplied,
		"conflicted", p.res.Conflicted,
		"retrying", p.res.Retrying,
		"failed", p.res.Failed,
		"skipped", p.res.Skipped,
		"interrupted", p.res.Interrupted,
	)

	if errors.Is(passErr, ErrUnreachable) {
		return p.res, nil
	}
	return p.res, passErr
}

func (c *Coordinator) skipReason(p *pass, item *queue.Item) string {
	switch {
	case p.blocked[item.Key()]:
		return "entity is waiting on an earlier mutation"
	case item.ParentID != "":
		return "earlier mutation of the entity is still queued"
	case !item.Due(c.now()):
		return "waiting for retry backoff"
	}
	return ""
}

// replay runs one item through detection and, if needed, the backend. The
// returned error ends the pass.
func (c *Coordinator) replay(ctx context.Context, p *pass, item *queue.Item) error {
	if err := c.queue.MarkSyncing(ctx, item); err != nil {
		return fmt.Errorf("mark %s syncing: %w", item.ID, err)
	}

	server, err := c.backend.Fetch(ctx, item.EntityType, item.EntityID)
	if err != nil {
		return c.failed(ctx, p, item, err)
	}

	switch outcome := c.detector.Check(item, server); outcome {
	case conflict.OutcomeConflict:
		return c.conflicted(ctx, p, item, server)

	case conflict.OutcomeAlreadyApplied:
		c.log.Info("mutation already on server", "item_id", item.ID, "entity", item.Key().String())
		if err := c.applied(ctx, p, item, server); err != nil {
			return err
		}
		p.res.AlreadyApplied++
		c.emit(p, itemEvent(EventItemApplied, item, func(e *Event) { e.Reason = outcome.String() }))
		return nil
	}

	state, err := c.send(ctx, item)
	if err != nil {
		return c.failed(ctx, p, item, err)
	}

	if err := c.applied(ctx, p, item, state); err != nil {
		return err
	}
	p.res.Applied++
	c.emit(p, itemEvent(EventItemApplied, item, nil))
	return nil
}

func (c *Coordinator) send(ctx context.Context, item *queue.Item) (json.RawMessage, error) {
	var (
		state json.RawMessage
		err   error
	)

	switch item.Action {
	case queue.ActionCreate:
		state, err = c.backend.Create(ctx, item.EntityType, item.EntityID, item.Payload, item.ID)
	case queue.ActionUpdate:
		state, err = c.backend.Update(ctx, item.EntityType, item.EntityID, item.Payload, item.ID)
	case queue.ActionDelete:
		return nil, c.backend.Delete(ctx, item.EntityType, item.EntityID, item.ID)
	default:
		return nil, fmt.Errorf("%w: %q", queue.ErrInvalidAction, item.Action)
	}
	if err != nil {
		return nil, err
	}

	if entity.IsNull(state) {
		state = item.Payload
	}
	return state, nil
}

func (c *Coordinator) applied(ctx context.Context, p *pass, item *queue.Item, state json.RawMessage) error {
	if err := c.entities.Put(ctx, item.EntityType, item.EntityID, state); err != nil {
		c.log.Warn("cache server state", "entity", item.Key().String(), "error", err)
	}
	if err := c.queue.Complete(ctx, item, state); err != nil {
		return fmt.Errorf("complete %s: %w", item.ID, err)
	}
	p.touched[item.EntityType] = struct{}{}
	return nil
}

func (c *Coordinator) conflicted(ctx context.Context, p *pass, item *queue.Item, server json.RawMessage) error {
	p.blocked[item.Key()] = true

	// The item only turns conflicted once there is a conflict to resolve it
	// through; otherwise it goes back to pending and is detected again.
	record, err := c.conflicts.Record(ctx, item, server)
	if err != nil {
		if rerr := c.queue.Release(context.WithoutCancel(ctx), item, err); rerr != nil {
			c.log.Error("release item", "item_id", item.ID, "error", rerr)
		}
		return err
	}
	if err := c.queue.MarkConflicted(ctx, item); err != nil {
		return fmt.Errorf("mark %s conflicted: %w", item.ID, err)
	}
	if err := c.entities.Put(ctx, item.EntityType, item.EntityID, server); err != nil {
		c.log.Warn("cache server state", "entity", item.Key().String(), "error", err)
	}

	p.res.Conflicted++
	c.emit(p, itemEvent(EventItemConflicted, item, func(e *Event) { e.ConflictID = record.ID }))
	return nil
}

// failed classifies a backend error. Transport failures put the coordinator
// offline and end the pass without using up a retry.
func (c *Coordinator) failed(ctx context.Context, p *pass, item *queue.Item, cause error) error {
	p.blocked[item.Key()] = true

	if errors.Is(cause, ErrUnreachable) || ctx.Err() != nil {
		if err := c.queue.Release(context.WithoutCancel(ctx), item, cause); err != nil {
			c.log.Error("release item", "item_id", item.ID, "error", err)
		}
		if errors.Is(cause, ErrUnreachable) {
			c.SetOnline(false)
		}
		return cause
	}

	permanent := errors.Is(cause, ErrRejected)
	final, err := c.queue.Fail(ctx, item, cause, permanent)
	if err != nil {
		return err
	}

	if final {
		p.res.Failed++
	} else {
		p.res.Retrying++
	}
	c.emit(p, itemEvent(EventItemFailed, item, func(e *Event) {
		e.Final = final
		e.Error = cause.Error()
	}))
	return nil
}

// refresh re-reads the entity types the pass changed so the cache matches
// the server.
func (c *Coordinator) refresh(ctx context.Context, p *pass) {
	if !c.cfg.RefreshTypes || ctx.Err() != nil || !c.Online() {
		return
	}

	for entityType := range p.touched {
		records, err := c.backend.List(ctx, entityType)
		if err != nil {
			c.log.Warn("refresh entity type", "entity_type", entityType, "error", err)
			continue
		}
		if err := c.entities.Replace(ctx, entityType, records); err != nil {
			c.log.Warn("store refreshed entities", "entity_type", entityType, "error", err)
			continue
		}
		c.log.Debug("entity type refreshed", "entity_type", entityType, "count", len(records))
	}
}

func (c *Coordinator) emit(p *pass, e Event) {
	e.Processed = p.res.Processed()
	e.Total = p.res.Total
	e.Percent = percent(e.Processed, e.Total)
	e.Online = c.Online()
	e.Timestamp = c.now().UTC()
	c.events.publish(e)
}

func (c *Coordinator) setBusy(busy bool) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.busy = busy
}

func (c *Coordinator) finish(res *Result) {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	c.lastSyncAt = res.FinishedAt
	c.lastResult = res
}

func itemEvent(t EventType, item *queue.Item, fill func(*Event)) Event {
	e := Event{
		Type:       t,
		ItemID:     item.ID,
		Action:     string(item.Action),
		EntityType: item.EntityType,
		EntityID:   item.EntityID,
	}
	if fill != nil {
		fill(&e)
	}
	return e
}

func percent(processed, total int) float64 {
	if total <= 0 {
		return 100
	}
	return float64(processed) * 100 / float64(total)
}
