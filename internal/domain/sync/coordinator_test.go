package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	stdsync "sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/infrastructure/storage/memory"
	"hotelsync/internal/utils/logger"
)

type fakeBackend struct {
	mu       stdsync.Mutex
	state    map[entity.Key]json.RawMessage
	writes   []string
	keys     []string
	failWith map[string]error
	down     bool
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		state:    make(map[entity.Key]json.RawMessage),
		failWith: make(map[string]error),
	}
}

func (b *fakeBackend) set(entityType, id, data string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state[entity.Key{Type: entityType, ID: id}] = json.RawMessage(data)
}

func (b *fakeBackend) get(entityType, id string) json.RawMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state[entity.Key{Type: entityType, ID: id}]
}

func (b *fakeBackend) writeLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.writes...)
}

func (b *fakeBackend) Ping(context.Context) error {
	if b.down {
		return ErrUnreachable
	}
	return nil
}

func (b *fakeBackend) Fetch(_ context.Context, entityType, entityID string) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, fmt.Errorf("%w: connection refused", ErrUnreachable)
	}
	return b.state[entity.Key{Type: entityType, ID: entityID}], nil
}

func (b *fakeBackend) write(op, entityType, entityID string, payload json.RawMessage, key string) (json.RawMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.down {
		return nil, fmt.Errorf("%w: connection refused", ErrUnreachable)
	}
	if err := b.failWith[entityID]; err != nil {
		return nil, err
	}

	b.writes = append(b.writes, op+" "+entityType+"/"+entityID)
	b.keys = append(b.keys, key)
	k := entity.Key{Type: entityType, ID: entityID}
	if payload == nil {
		delete(b.state, k)
		return nil, nil
	}
	b.state[k] = payload
	return payload, nil
}

func (b *fakeBackend) Create(_ context.Context, entityType, entityID string, payload json.RawMessage, key string) (json.RawMessage, error) {
	return b.write("create", entityType, entityID, payload, key)
}

func (b *fakeBackend) Update(_ context.Context, entityType, entityID string, payload json.RawMessage, key string) (json.RawMessage, error) {
	return b.write("update", entityType, entityID, payload, key)
}

func (b *fakeBackend) Delete(_ context.Context, entityType, entityID string, key string) error {
	_, err := b.write("delete", entityType, entityID, nil, key)
	return err
}

func (b *fakeBackend) List(_ context.Context, entityType string) ([]entity.Record, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []entity.Record
	for k, v := range b.state {
		if k.Type == entityType {
			out = append(out, entity.Record{ID: k.ID, Data: v})
		}
	}
	return out, nil
}

type harness struct {
	queue     *queue.Service
	conflicts *conflict.Service
	entities  *entity.Service
	backend   *fakeBackend
	coord     *Coordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logger.Discard()
	store := memory.New()
	entities := entity.NewService(store.Entities(), log)
	q := queue.NewService(store.Queue(), entities, log, queue.Config{MaxRetries: 3, RetryDelay: 0})
	conflicts := conflict.NewService(store.Conflicts(), q, entities, log)
	backend := newFakeBackend()

	coord := NewCoordinator(q, conflicts, entities, backend, log, Config{RefreshTypes: true})
	q.SetNotifier(coord)
	conflicts.SetNotifier(coord)
	coord.SetOnline(true)

	return &harness{queue: q, conflicts: conflicts, entities: entities, backend: backend, coord: coord}
}

func (h *harness) enqueue(t *testing.T, action queue.Action, entityType, id, payload string) *queue.Item {
	t.Helper()
	req := queue.EnqueueRequest{Action: action, EntityType: entityType, EntityID: id}
	if payload != "" {
		req.Payload = json.RawMessage(payload)
	}
	item, err := h.queue.Enqueue(context.Background(), req)
	require.NoError(t, err)
	return item
}

// seed puts an entity on the server and in the local cache, as after a refresh.
func (h *harness) seed(t *testing.T, entityType, id, data string) {
	t.Helper()
	h.backend.set(entityType, id, data)
	require.NoError(t, h.entities.Put(context.Background(), entityType, id, json.RawMessage(data)))
}

func TestSync_ReplaysInEnqueueOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-3", `{"total":3}`)
	h.enqueue(t, queue.ActionCreate, entity.TypeBookings, "b-1", `{"room":"101"}`)
	h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":1}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-3", `{"total":4}`)
	h.enqueue(t, queue.ActionDelete, entity.TypeBookings, "b-1", "")

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"create orders/o-3",
		"create bookings/b-1",
		"create orders/o-1",
		"update orders/o-3",
		"delete bookings/b-1",
	}, h.backend.writeLog())
	assert.Equal(t, 5, res.Applied)
	assert.Equal(t, 0, res.Conflicted)

	left, err := h.queue.List(ctx, queue.Filter{})
	require.NoError(t, err)
	assert.Empty(t, left)

	assert.JSONEq(t, `{"total":4}`, string(h.backend.get(entity.TypeOrders, "o-3")))
	assert.Nil(t, h.backend.get(entity.TypeBookings, "b-1"))
}

func TestSync_SendsItemIDAsIdempotencyKey(t *testing.T) {
	h := newHarness(t)

	item := h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":1}`)

	_, err := h.coord.Sync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{item.ID}, h.backend.keys)
}

func TestSync_FailsAfterMaxRetries(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	events, cancel := h.coord.Subscribe(256)
	defer cancel()

	h.backend.failWith["o-1"] = &StatusError{Code: http.StatusServiceUnavailable}
	item := h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":1}`)

	for i := 0; i < 3; i++ {
		_, err := h.coord.Sync(ctx)
		require.NoError(t, err)
	}

	got, err := h.queue.Get(ctx, item.ID)
	require.NoError(t, err, "failed items must stay in the store")
	assert.Equal(t, queue.StatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.NotEmpty(t, got.LastError)

	var final int
	for len(events) > 0 {
		e := <-events
		if e.Type == EventItemFailed && e.Final {
			final++
		}
	}
	assert.Equal(t, 1, final)

	// A fourth pass leaves the failed item alone.
	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Total)

	stats, err := h.coord.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 0, stats.PendingSync)
}

func TestSync_PermanentRejectionFailsAtOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.backend.failWith["o-1"] = &StatusError{Code: http.StatusUnprocessableEntity, Message: "total must be positive"}
	item := h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":-1}`)
	later := h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"total":2}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Equal(t, 1, res.Skipped)

	got, err := h.queue.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusFailed, got.Status)

	waiting, err := h.queue.Get(ctx, later.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, waiting.Status)
	assert.Empty(t, h.backend.writeLog())
}

func TestSync_IdenticalSnapshotsDoNotConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o-1", `{"status":"open","total":10}`)
	// Same content, different key order on the server.
	h.backend.set(entity.TypeOrders, "o-1", `{"total":10,"status":"open"}`)

	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"status":"paid","total":10}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, 0, res.Conflicted)

	n, err := h.conflicts.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSync_DivergedServerOpensConflict(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o-1", `{"status":"open","total":10}`)
	first := h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"status":"paid","total":10}`)
	second := h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"status":"closed","total":10}`)
	other := h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-2", `{"total":5}`)

	h.backend.set(entity.TypeOrders, "o-1", `{"status":"open","total":12}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicted)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []string{"create orders/o-2"}, h.backend.writeLog())

	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, first.ID, c.QueueItemID)
	assert.JSONEq(t, `{"status":"paid","total":10}`, string(c.LocalVersion))
	assert.JSONEq(t, `{"status":"open","total":12}`, string(c.ServerVersion))
	assert.JSONEq(t, `{"status":"open","total":10}`, string(c.BaseVersion))

	got, err := h.queue.Get(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusConflicted, got.Status)

	_, err = h.queue.Get(ctx, other.ID)
	assert.ErrorIs(t, err, queue.ErrNotFound)

	// The entity stays blocked until the conflict is resolved.
	res, err = h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	still, err := h.queue.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, still.Status)
}

func TestResolve_UseServerDoesNotReapply(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeBookings, "b-1", `{"room":"101"}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeBookings, "b-1", `{"room":"102"}`)
	h.backend.set(entity.TypeBookings, "b-1", `{"room":"205"}`)

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	res, err := h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyUseServer})
	require.NoError(t, err)
	assert.False(t, res.Requeued)

	_, err = h.coord.Sync(ctx)
	require.NoError(t, err)

	assert.Empty(t, h.backend.writeLog())
	assert.JSONEq(t, `{"room":"205"}`, string(h.backend.get(entity.TypeBookings, "b-1")))

	snap, err := h.entities.Get(ctx, entity.TypeBookings, "b-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"room":"205"}`, string(snap.Data))

	_, err = h.conflicts.Get(ctx, conflicts[0].ID)
	assert.ErrorIs(t, err, conflict.ErrNotFound)
}

func TestResolve_UseLocalOverwritesServer(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeMenuItems, "m-1", `{"name":"Soup","price":5}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeMenuItems, "m-1", `{"name":"Soup","price":6}`)
	h.backend.set(entity.TypeMenuItems, "m-1", `{"name":"Soup of the day","price":5}`)

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	res, err := h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyUseLocal})
	require.NoError(t, err)
	assert.True(t, res.Requeued)

	sync2, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sync2.Applied)
	assert.JSONEq(t, `{"name":"Soup","price":6}`, string(h.backend.get(entity.TypeMenuItems, "m-1")))
}

func TestResolve_UseLocalRecreatesDeletedEntity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeCartItems, "c-1", `{"qty":1}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeCartItems, "c-1", `{"qty":2}`)
	h.backend.mu.Lock()
	delete(h.backend.state, entity.Key{Type: entity.TypeCartItems, ID: "c-1"})
	h.backend.mu.Unlock()

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Nil(t, conflicts[0].ServerVersion)

	_, err = h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyMerge})
	assert.ErrorIs(t, err, conflict.ErrMergeUnsupported)

	_, err = h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyUseLocal})
	require.NoError(t, err)

	_, err = h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"create cart_items/c-1"}, h.backend.writeLog())
	assert.JSONEq(t, `{"qty":2}`, string(h.backend.get(entity.TypeCartItems, "c-1")))
}

func TestResolve_MergeCombinesDisjointChanges(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o-1", `{"status":"open","table":4,"note":"window"}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"status":"paid","table":4,"note":"window"}`)
	h.backend.set(entity.TypeOrders, "o-1", `{"status":"open","table":7,"note":"window"}`)

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	res, err := h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyMerge})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"paid","table":7,"note":"window"}`, string(res.Result))

	_, err = h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"paid","table":7,"note":"window"}`, string(h.backend.get(entity.TypeOrders, "o-1")))
}

func TestSync_AlreadyAppliedIsNotResent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":1}`)
	// The request landed before the agent crashed.
	h.backend.set(entity.TypeOrders, "o-1", `{"total":1,"created_at":"2024-05-01T10:00:00Z"}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.AlreadyApplied)
	assert.Empty(t, h.backend.writeLog())
}

func TestSync_ChainedEditsOfOneEntity(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o-1", `{"total":1}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"total":2}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"total":3}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"total":4}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Applied)
	assert.Equal(t, 0, res.Conflicted)
	assert.JSONEq(t, `{"total":4}`, string(h.backend.get(entity.TypeOrders, "o-1")))
}

func TestSync_Offline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.coord.SetOnline(false)
	_, err := h.coord.Sync(ctx)
	assert.ErrorIs(t, err, ErrOffline)
}

func TestSync_TransportErrorGoesOffline(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	a := h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":1}`)
	h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-2", `{"total":2}`)
	h.backend.down = true

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.True(t, res.Interrupted)
	assert.False(t, h.coord.Online())

	got, err := h.queue.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Zero(t, got.RetryCount)

	h.backend.down = false
	h.coord.SetOnline(true)
	res, err = h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Applied)
}

func TestSync_ProgressIsRealPercentage(t *testing.T) {
	h := newHarness(t)

	events, cancel := h.coord.Subscribe(64)
	defer cancel()

	for i := 1; i <= 4; i++ {
		h.enqueue(t, queue.ActionCreate, entity.TypeOrders, fmt.Sprintf("o-%d", i), `{"total":1}`)
	}

	_, err := h.coord.Sync(context.Background())
	require.NoError(t, err)

	var percents []float64
	for len(events) > 0 {
		e := <-events
		if e.Type == EventItemApplied || e.Type == EventCompleted {
			percents = append(percents, e.Percent)
		}
	}
	assert.Equal(t, []float64{25, 50, 75, 100, 100}, percents)
}

func TestView_AppliesQueuedMutations(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o-1", `{"total":1}`)
	h.coord.SetOnline(false)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"total":2}`)

	view, err := h.coord.View(ctx, entity.TypeOrders, "o-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":1}`, string(view.Server))
	assert.JSONEq(t, `{"total":2}`, string(view.Local))
	assert.Equal(t, 1, view.Queued)

	h.enqueue(t, queue.ActionDelete, entity.TypeOrders, "o-1", "")
	view, err = h.coord.View(ctx, entity.TypeOrders, "o-1")
	require.NoError(t, err)
	assert.True(t, view.Deleted)

	_, err = h.coord.View(ctx, entity.TypeOrders, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSync_RefreshesTouchedEntityTypes(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// Created on the server by another terminal, never seen locally.
	h.backend.set(entity.TypeOrders, "o-9", `{"total":9}`)
	h.backend.set(entity.TypeBookings, "b-9", `{"room":"909"}`)
	h.enqueue(t, queue.ActionCreate, entity.TypeOrders, "o-1", `{"total":1}`)

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)

	snap, err := h.entities.Get(ctx, entity.TypeOrders, "o-9")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":9}`, string(snap.Data))

	_, err = h.entities.Get(ctx, entity.TypeBookings, "b-9")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestSync_UpdateRemovingFieldIsSent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o1", `{"id":"o1","note":"extra","status":"new"}`)
	item := h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o1", `{"id":"o1","status":"new"}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, res.AlreadyApplied)
	assert.Equal(t, []string{"update orders/o1"}, h.backend.writeLog())
	assert.Equal(t, string(item.Payload), string(h.backend.get(entity.TypeOrders, "o1")))
}

func TestSync_RemovedFieldChangedOnServerConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o1", `{"id":"o1","note":"base","status":"new"}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o1", `{"id":"o1","status":"new"}`)
	h.backend.set(entity.TypeOrders, "o1", `{"id":"o1","note":"server","status":"new"}`)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Conflicted)
	assert.Zero(t, res.AlreadyApplied)
	assert.Empty(t, h.backend.writeLog())
}

func TestResolve_UseLocalDropsFieldsOnlyTheServerHas(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeMenuItems, "m-1", `{"name":"Soup","price":5,"spicy":false}`)
	item := h.enqueue(t, queue.ActionUpdate, entity.TypeMenuItems, "m-1", `{"name":"Soup","price":5}`)
	h.backend.set(entity.TypeMenuItems, "m-1", `{"name":"Soup","price":5,"spicy":true}`)

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	_, err = h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyUseLocal})
	require.NoError(t, err)

	res, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Zero(t, res.AlreadyApplied)
	assert.Equal(t, string(item.Payload), string(h.backend.get(entity.TypeMenuItems, "m-1")))
}

func TestResolve_MergeKeepsLocalFieldRemoval(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	h.seed(t, entity.TypeOrders, "o-1", `{"status":"open","table":4,"note":"window"}`)
	h.enqueue(t, queue.ActionUpdate, entity.TypeOrders, "o-1", `{"status":"open","table":4}`)
	h.backend.set(entity.TypeOrders, "o-1", `{"status":"open","table":7,"note":"window"}`)

	_, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	conflicts, err := h.conflicts.List(ctx)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)

	res, err := h.conflicts.Resolve(ctx, conflicts[0].ID, conflict.ResolveRequest{Strategy: conflict.StrategyMerge})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"open","table":7}`, string(res.Result))

	pass, err := h.coord.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, pass.Applied)
	assert.JSONEq(t, `{"status":"open","table":7}`, string(h.backend.get(entity.TypeOrders, "o-1")))
}

type failingConflicts struct {
	conflict.Repository
	err error
}

func (r *failingConflicts) Create(context.Context, *conflict.Conflict) error {
	return r.err
}

func TestSync_UnrecordedConflictLeavesItemPending(t *testing.T) {
	ctx := context.Background()
	log := logger.Discard()
	store := memory.New()
	entities := entity.NewService(store.Entities(), log)
	q := queue.NewService(store.Queue(), entities, log, queue.Config{MaxRetries: 3})
	conflicts := conflict.NewService(&failingConflicts{Repository: store.Conflicts(), err: fmt.Errorf("disk full")}, q, entities, log)
	backend := newFakeBackend()
	coord := NewCoordinator(q, conflicts, entities, backend, log, Config{})
	coord.SetOnline(true)

	backend.set(entity.TypeOrders, "o-1", `{"total":1}`)
	require.NoError(t, entities.Put(ctx, entity.TypeOrders, "o-1", json.RawMessage(`{"total":1}`)))
	item, err := q.Enqueue(ctx, queue.EnqueueRequest{
		Action: queue.ActionUpdate, EntityType: entity.TypeOrders, EntityID: "o-1",
		Payload: json.RawMessage(`{"total":2}`),
	})
	require.NoError(t, err)
	backend.set(entity.TypeOrders, "o-1", `{"total":3}`)

	res, err := coord.Sync(ctx)
	require.Error(t, err)
	assert.True(t, res.Interrupted)

	got, err := q.Get(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, got.Status)
	assert.Contains(t, got.LastError, "disk full")

	// The next pass detects the conflict again instead of skipping the entity.
	res, err = coord.Sync(ctx)
	require.Error(t, err)
	assert.Zero(t, res.Skipped)

	require.NoError(t, q.Discard(ctx, item.ID))
}
