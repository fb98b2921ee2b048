package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/app/server/api"
	"hotelsync/internal/config"
	"hotelsync/internal/domain/conflict"
	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/queue"
	"hotelsync/internal/domain/sync"
	"hotelsync/internal/infrastructure/backend"
	"hotelsync/internal/infrastructure/storage/memory"
	"hotelsync/internal/utils/logger"
)

type agent struct {
	srv   *httptest.Server
	coord *sync.Coordinator
}

// newAgent serves the real operator API over an in-memory store. The backend
// is never reached: the coordinator starts offline.
func newAgent(t *testing.T, token string) *agent {
	t.Helper()
	log := logger.Discard()

	store := memory.New()
	entities := entity.NewService(store.Entities(), log)
	q := queue.NewService(store.Queue(), entities, log, queue.DefaultConfig())
	conflicts := conflict.NewService(store.Conflicts(), q, entities, log)
	be := backend.New(config.Backend{BaseURL: "http://127.0.0.1:1", Timeout: time.Second}, log)
	coord := sync.NewCoordinator(q, conflicts, entities, be, log, sync.Config{})

	router := api.New(api.Deps{Queue: q, Conflicts: conflicts, Sync: coord, Token: token}, log)
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		router.Close()
		srv.Close()
	})
	return &agent{srv: srv, coord: coord}
}

func TestClient_QueueRoundTrip(t *testing.T) {
	a := newAgent(t, "")
	c := New(a.srv.URL, "", time.Second, logger.Discard())
	ctx := context.Background()

	item, err := c.Enqueue(ctx, queue.EnqueueRequest{
		Action:     queue.ActionUpdate,
		EntityType: "orders",
		EntityID:   "42",
		Payload:    json.RawMessage(`{"status":"served"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, queue.StatusPending, item.Status)

	items, err := c.Queue(ctx, queue.Filter{Statuses: []queue.Status{queue.StatusPending, queue.StatusSyncing}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, item.ID, items[0].ID)

	view, err := c.Entity(ctx, "orders", "42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"served"}`, string(view.Local))
	assert.Equal(t, 1, view.Queued)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.PendingSync)

	require.NoError(t, c.Discard(ctx, item.ID))
	items, err = c.Queue(ctx, queue.Filter{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestClient_Errors(t *testing.T) {
	a := newAgent(t, "operator")
	ctx := context.Background()

	t.Run("Unauthorized", func(t *testing.T) {
		c := New(a.srv.URL, "wrong", time.Second, logger.Discard())
		_, err := c.Stats(ctx)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
		assert.Equal(t, "Unauthorized", apiErr.Message)
	})

	c := New(a.srv.URL, "operator", time.Second, logger.Discard())

	t.Run("SyncWhileOffline", func(t *testing.T) {
		_, err := c.Sync(ctx)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusServiceUnavailable, apiErr.Status)
		assert.Contains(t, apiErr.Message, "offline")
	})

	t.Run("MissingConflict", func(t *testing.T) {
		_, err := c.Resolve(ctx, "nope", conflict.ResolveRequest{Strategy: conflict.StrategyUseServer})

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusNotFound, apiErr.Status)
	})

	t.Run("NoAgent", func(t *testing.T) {
		c := New("127.0.0.1:1", "", time.Second, logger.Discard())
		_, err := c.Health(ctx)

		assert.True(t, errors.Is(err, ErrAgentUnreachable))
	})
}

func TestClient_Events(t *testing.T) {
	a := newAgent(t, "operator")
	c := New(a.srv.URL, "operator", time.Second, logger.Discard())
	a.coord.SetOnline(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	events, err := c.Events(ctx)
	require.NoError(t, err)

	// The server subscribes right after the upgrade, so retry until a pass
	// lands on the stream.
	deadline := time.After(5 * time.Second)
	var first sync.Event
loop:
	for {
		_, _ = a.coord.Sync(context.Background())
		select {
		case first = <-events:
			break loop
		case <-time.After(20 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event received")
		}
	}
	assert.Contains(t, []sync.EventType{sync.EventStarted, sync.EventCompleted}, first.Type)

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-events:
			return !ok
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}

func TestClient_EventsUnauthorized(t *testing.T) {
	a := newAgent(t, "operator")
	c := New(a.srv.URL, "", time.Second, logger.Discard())

	_, err := c.Events(context.Background())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestDecodeError(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		message string
		fields  []string
	}{
		{
			name:    "huma model with merge fields",
			status:  http.StatusConflict,
			body:    `{"title":"Conflict","status":409,"detail":"changes cannot be merged automatically","errors":[{"message":"changed on both sides","location":"body.merged.status"},{"location":"body.merged.total"}]}`,
			message: "changes cannot be merged automatically",
			fields:  []string{"status", "total"},
		},
		{
			name:    "auth body",
			status:  http.StatusUnauthorized,
			body:    `{"status":"Error","error":"Unauthorized"}`,
			message: "Unauthorized",
		},
		{
			name:   "not json",
			status: http.StatusBadGateway,
			body:   `<html>bad gateway</html>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := decodeError(tt.status, []byte(tt.body))

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.message, apiErr.Message)
			assert.Equal(t, tt.fields, apiErr.Fields)
		})
	}
}
