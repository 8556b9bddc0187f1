package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

type PrometheusMetricsService struct {
	itemsEnqueuedTotal       *prometheus.CounterVec
	itemsDispatchedTotal     *prometheus.CounterVec
	rateLimitHitsTotal       *prometheus.CounterVec
	queueDepth               *prometheus.GaugeVec
	itemsPurgedTotal         *prometheus.CounterVec
	itemsStaleReclaimedTotal prometheus.Counter
}

func newPrometheusMetricsService() *PrometheusMetricsService {
	srv := &PrometheusMetricsService{
		itemsEnqueuedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncq_items_enqueued_total",
				Help: "Total number of items accepted into the sync queue",
			},
			[]string{"destination"},
		),

		itemsDispatchedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncq_items_dispatched_total",
				Help: "Total number of dispatch attempts, labeled by how each attempt ended",
			},
			[]string{"destination", "result"},
		),

		rateLimitHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncq_rate_limit_hits_total",
				Help: "Total number of outbound calls denied by the rate limiter",
			},
			[]string{"api_name"},
		),

		queueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "syncq_queue_depth",
				Help: "Current number of queue items per status",
			},
			[]string{"status"},
		),

		itemsPurgedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "syncq_items_purged_total",
				Help: "Total number of records removed by retention cleanup",
			},
			[]string{"kind"},
		),

		// no destination label here, as the reclaim is performed by the cronjob
		// with a fire-and-forget UPDATE that doesn't group by destination
		itemsStaleReclaimedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "syncq_items_stale_reclaimed_total",
				Help: "Total number of stuck processing items returned to the queue or failed",
			},
		),
	}

	prometheus.MustRegister(srv.itemsEnqueuedTotal)
	prometheus.MustRegister(srv.itemsDispatchedTotal)
	prometheus.MustRegister(srv.rateLimitHitsTotal)
	prometheus.MustRegister(srv.queueDepth)
	prometheus.MustRegister(srv.itemsPurgedTotal)
	prometheus.MustRegister(srv.itemsStaleReclaimedTotal)

	return srv
}

func (pms *PrometheusMetricsService) IncItemsEnqueuedTotalBy(count int64, destination string) {
	pms.itemsEnqueuedTotal.WithLabelValues(destination).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncItemsDispatchedTotalBy(count int64, destination string, result string) {
	pms.itemsDispatchedTotal.WithLabelValues(destination, result).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncRateLimitHitsTotalBy(count int64, apiName string) {
	pms.rateLimitHitsTotal.WithLabelValues(apiName).Add(float64(count))
}

func (pms *PrometheusMetricsService) SetQueueDepth(status string, depth int64) {
	pms.queueDepth.WithLabelValues(status).Set(float64(depth))
}

func (pms *PrometheusMetricsService) IncItemsPurgedTotalBy(count int64, kind string) {
	pms.itemsPurgedTotal.WithLabelValues(kind).Add(float64(count))
}

func (pms *PrometheusMetricsService) IncItemsStaleReclaimedTotalBy(count int64) {
	pms.itemsStaleReclaimedTotal.Add(float64(count))
}
