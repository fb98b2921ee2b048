package sync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/domain/entity"
	"hotelsync/internal/domain/sync"
	"hotelsync/internal/utils/logger"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Sync(ctx context.Context) (*sync.Result, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.Result), args.Error(1)
}

func (m *MockService) Trigger() { m.Called() }

func (m *MockService) SetOnline(online bool) { m.Called(online) }

func (m *MockService) Online() bool { return m.Called().Bool(0) }

func (m *MockService) Status() sync.Status { return m.Called().Get(0).(sync.Status) }

func (m *MockService) Subscribe(buffer int) (<-chan sync.Event, func()) {
	args := m.Called(buffer)
	return args.Get(0).(<-chan sync.Event), args.Get(1).(func())
}

func (m *MockService) Stats(ctx context.Context) (*sync.StorageStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.StorageStats), args.Error(1)
}

func (m *MockService) View(ctx context.Context, entityType, entityID string) (*sync.EntityView, error) {
	args := m.Called(ctx, entityType, entityID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*sync.EntityView), args.Error(1)
}

func httpStatus(t *testing.T, err error) int {
	t.Helper()
	var se huma.StatusError
	require.ErrorAs(t, err, &se)
	return se.GetStatus()
}

func TestHandler_Stats(t *testing.T) {
	ctx := context.Background()
	svc := new(MockService)
	h := NewHandler(svc, logger.Discard(), nil)

	stats := &sync.StorageStats{Orders: 3, PendingSync: 2, Failed: 1, Conflicts: 1, ByType: map[string]int{"orders": 3}}
	svc.On("Stats", ctx).Return(stats, nil)

	out, err := h.stats(ctx, nil)

	require.NoError(t, err)
	assert.Equal(t, "Ok", out.Body.Status)
	assert.Equal(t, stats, out.Body.Stats)
}

func TestHandler_Sync(t *testing.T) {
	ctx := context.Background()

	t.Run("Completed", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, logger.Discard(), nil)
		svc.On("Sync", ctx).Return(&sync.Result{Total: 2, Applied: 2}, nil)

		out, err := h.sync(ctx, nil)

		require.NoError(t, err)
		assert.Equal(t, "Ok", out.Body.Status)
		assert.Equal(t, 2, out.Body.Result.Applied)
	})

	t.Run("Interrupted", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, logger.Discard(), nil)
		svc.On("Sync", ctx).Return(&sync.Result{Total: 2, Applied: 1, Interrupted: true, Error: "backend unreachable"}, nil)

		out, err := h.sync(ctx, nil)

		require.NoError(t, err)
		assert.Equal(t, "Error", out.Body.Status)
		assert.Equal(t, "backend unreachable", out.Body.Error)
	})

	errCases := []struct {
		name   string
		err    error
		status int
	}{
		{"Offline", sync.ErrOffline, http.StatusServiceUnavailable},
		{"InProgress", sync.ErrSyncInProgress, http.StatusConflict},
		{"Storage", errors.New("database is locked"), http.StatusInternalServerError},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			svc := new(MockService)
			h := NewHandler(svc, logger.Discard(), nil)
			svc.On("Sync", ctx).Return(nil, tc.err)

			_, err := h.sync(ctx, nil)

			assert.Equal(t, tc.status, httpStatus(t, err))
		})
	}
}

func TestHandler_Status(t *testing.T) {
	svc := new(MockService)
	h := NewHandler(svc, logger.Discard(), nil)
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.On("Status").Return(sync.Status{Online: true, LastSyncAt: at})

	out, err := h.status(context.Background(), nil)

	require.NoError(t, err)
	assert.True(t, out.Body.Sync.Online)
	assert.Equal(t, at, out.Body.Sync.LastSyncAt)
}

func TestHandler_Entity(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, logger.Discard(), nil)
		view := &sync.EntityView{
			EntityType: "orders",
			EntityID:   "42",
			Server:     json.RawMessage(`{"status":"new"}`),
			Local:      json.RawMessage(`{"status":"served"}`),
			Queued:     1,
		}
		svc.On("View", ctx, "orders", "42").Return(view, nil)

		out, err := h.entity(ctx, &entityInput{Type: "orders", ID: "42"})

		require.NoError(t, err)
		assert.Equal(t, view, out.Body.Entity)
	})

	t.Run("NotFound", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, logger.Discard(), nil)
		svc.On("View", ctx, "orders", "404").Return(nil, entity.ErrNotFound)

		_, err := h.entity(ctx, &entityInput{Type: "orders", ID: "404"})

		assert.Equal(t, http.StatusNotFound, httpStatus(t, err))
	})

	t.Run("BadType", func(t *testing.T) {
		svc := new(MockService)
		h := NewHandler(svc, logger.Discard(), nil)
		svc.On("View", ctx, "Orders!", "1").Return(nil, entity.ErrInvalidType)

		_, err := h.entity(ctx, &entityInput{Type: "Orders!", ID: "1"})

		assert.Equal(t, http.StatusUnprocessableEntity, httpStatus(t, err))
	})
}

func TestHandler_Routes(t *testing.T) {
	svc := new(MockService)
	_, api := humatest.New(t)
	NewHandler(svc, logger.Discard(), nil).SetupRoutes(api)
	svc.On("Status").Return(sync.Status{Online: false})

	resp := api.Get("/api/v1/offline/sync/status")

	require.Equal(t, http.StatusOK, resp.Code)
	var body statusResponse
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &body))
	assert.Equal(t, "Ok", body.Status)
	assert.False(t, body.Sync.Online)
}
