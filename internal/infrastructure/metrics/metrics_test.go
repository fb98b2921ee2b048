package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotelsync/internal/domain/sync"
	"hotelsync/internal/utils/logger"
)

type fakeStats struct {
	stats *sync.StorageStats
	err   error
}

func (f fakeStats) Stats(context.Context) (*sync.StorageStats, error) {
	return f.stats, f.err
}

func TestMetrics_Observe(t *testing.T) {
	m := New(fakeStats{stats: &sync.StorageStats{}}, logger.Discard())
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for _, e := range []sync.Event{
		{Type: sync.EventStarted, Online: true, Timestamp: start},
		{Type: sync.EventItemApplied, EntityType: "orders", Online: true},
		{Type: sync.EventItemApplied, EntityType: "orders", Reason: "already_applied", Online: true},
		{Type: sync.EventItemConflicted, EntityType: "bookings", Online: true},
		{Type: sync.EventItemFailed, EntityType: "orders", Online: true},
		{Type: sync.EventItemFailed, EntityType: "orders", Final: true, Online: true},
		{Type: sync.EventItemSkipped, EntityType: "orders", Online: true},
		{Type: sync.EventCompleted, Online: true, Timestamp: start.Add(2 * time.Second)},
	} {
		m.Observe(e)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("applied", "orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("already_applied", "orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("conflicted", "bookings")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("retrying", "orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("failed", "orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.items.WithLabelValues("skipped", "orders")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.online))
	assert.Equal(t, 1, testutil.CollectAndCount(m.duration))

	m.Observe(sync.Event{Type: sync.EventCompleted, Error: "backend unreachable", Online: false})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("interrupted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.online))
}

func TestMetrics_Run(t *testing.T) {
	m := New(fakeStats{stats: &sync.StorageStats{}}, logger.Discard())
	events := make(chan sync.Event, 2)
	events <- sync.Event{Type: sync.EventConnectivity, Online: true}
	close(events)

	done := make(chan struct{})
	go func() {
		m.Run(context.Background(), events)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the channel closed")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.online))
}

func TestStoreCollector(t *testing.T) {
	c := newStoreCollector(fakeStats{stats: &sync.StorageStats{
		PendingSync: 2,
		Failed:      1,
		Conflicts:   3,
		ByType:      map[string]int{"orders": 5, "menu_items": 12},
	}}, logger.Discard())

	expected := `
# HELP hotelsync_offline_cached_entities Cached server snapshots by entity type.
# TYPE hotelsync_offline_cached_entities gauge
hotelsync_offline_cached_entities{entity_type="menu_items"} 12
hotelsync_offline_cached_entities{entity_type="orders"} 5
# HELP hotelsync_offline_queue_items Queued mutations and open conflicts by state.
# TYPE hotelsync_offline_queue_items gauge
hotelsync_offline_queue_items{state="conflicted"} 3
hotelsync_offline_queue_items{state="failed"} 1
hotelsync_offline_queue_items{state="pending"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected)))
}

func TestStoreCollector_Error(t *testing.T) {
	c := newStoreCollector(fakeStats{err: errors.New("database is locked")}, logger.Discard())

	assert.Error(t, testutil.CollectAndCompare(c, strings.NewReader("")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(fakeStats{stats: &sync.StorageStats{PendingSync: 4}}, logger.Discard())
	m.Observe(sync.Event{Type: sync.EventItemApplied, EntityType: "orders", Online: true})

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `hotelsync_sync_items_total{entity_type="orders",outcome="applied"} 1`)
	assert.Contains(t, body, `hotelsync_offline_queue_items{state="pending"} 4`)
	assert.Contains(t, body, "go_goroutines")
}
