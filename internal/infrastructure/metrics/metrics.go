package metrics

import (
	"context"
	"net/http"
	"time"

	"hotelsync/internal/domain/sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/exp/slog"
)

const namespace = "hotelsync"

// StatsSource yields the offline store counts exported on every scrape.
type StatsSource interface {
	Stats(ctx context.Context) (*sync.StorageStats, error)
}

// Metrics turns sync events into Prometheus series.
type Metrics struct {
	registry *prometheus.Registry
	log      *slog.Logger

	passes   *prometheus.CounterVec
	items    *prometheus.CounterVec
	duration prometheus.Histogram
	online   prometheus.Gauge

	passStarted time.Time
}

func New(stats StatsSource, log *slog.Logger) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		log:      log.With(slog.String("component", "metrics")),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "passes_total",
			Help:      "Sync passes by result.",
		}, []string{"result"}),
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "items_total",
			Help:      "Replayed queue items by outcome.",
		}, []string{"outcome", "entity_type"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "pass_duration_seconds",
			Help:      "Wall time of a sync pass.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_online",
			Help:      "1 when the backend is reachable.",
		}),
	}

	m.registry.MustRegister(
		m.passes,
		m.items,
		m.duration,
		m.online,
		newStoreCollector(stats, m.log),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Run consumes events until ctx is done or the channel closes.
func (m *Metrics) Run(ctx context.Context, events <-chan sync.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}

// Observe must be called from a single goroutine, normally Run.
func (m *Metrics) Observe(e sync.Event) {
	m.online.Set(boolToFloat(e.Online))

	switch e.Type {
	case sync.EventStarted:
		m.passStarted = e.Timestamp
	case sync.EventCompleted:
		result := "completed"
		if e.Error != "" {
			result = "interrupted"
		}
		m.passes.WithLabelValues(result).Inc()
		if !m.passStarted.IsZero() {
			m.duration.Observe(e.Timestamp.Sub(m.passStarted).Seconds())
			m.passStarted = time.Time{}
		}
	case sync.EventItemApplied:
		outcome := "applied"
		if e.Reason != "" {
			outcome = e.Reason
		}
		m.items.WithLabelValues(outcome, e.EntityType).Inc()
	case sync.EventItemConflicted:
		m.items.WithLabelValues("conflicted", e.EntityType).Inc()
	case sync.EventItemSkipped:
		m.items.WithLabelValues("skipped", e.EntityType).Inc()
	case sync.EventItemFailed:
		outcome := "retrying"
		if e.Final {
			outcome = "failed"
		}
		m.items.WithLabelValues(outcome, e.EntityType).Inc()
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
