package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/exp/slog"
)

const scrapeTimeout = 5 * time.Second

// storeCollector reads the offline store on scrape instead of mirroring it.
type storeCollector struct {
	stats StatsSource
	log   *slog.Logger

	queueDesc    *prometheus.Desc
	entitiesDesc *prometheus.Desc
}

func newStoreCollector(stats StatsSource, log *slog.Logger) *storeCollector {
	return &storeCollector{
		stats: stats,
		log:   log,
		queueDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "offline", "queue_items"),
			"Queued mutations and open conflicts by state.",
			[]string{"state"}, nil,
		),
		entitiesDesc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "offline", "cached_entities"),
			"Cached server snapshots by entity type.",
			[]string{"entity_type"}, nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.queueDesc
	ch <- c.entitiesDesc
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), scrapeTimeout)
	defer cancel()

	stats, err := c.stats.Stats(ctx)
	if err != nil {
		c.log.Warn("collect store stats", slog.String("error", err.Error()))
		ch <- prometheus.NewInvalidMetric(c.queueDesc, err)
		return
	}

	ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, float64(stats.PendingSync), "pending")
	ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, float64(stats.Failed), "failed")
	ch <- prometheus.MustNewConstMetric(c.queueDesc, prometheus.GaugeValue, float64(stats.Conflicts), "conflicted")
	for entityType, n := range stats.ByType {
		ch <- prometheus.MustNewConstMetric(c.entitiesDesc, prometheus.GaugeValue, float64(n), entityType)
	}
}
