package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RecordsProcessed *prometheus.CounterVec
	Interventions    *prometheus.CounterVec
	APIErrors        prometheus.Counter
	RequestSeconds   *prometheus.HistogramVec
	CacheEntries     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		RecordsProcessed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geoetl_records_processed_total",
			Help: "Total number of processed records by resolution status.",
		}, []string{"status"}),
		Interventions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geoetl_interventions_total",
			Help: "Total number of manual interventions by operator decision.",
		}, []string{"decision"}),
		APIErrors: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "geoetl_provider_api_errors_total",
			Help: "Total number of transient errors received from remote geocoding sources.",
		}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geoetl_resolution_duration_seconds",
			Help:    "Duration of full record resolution including rate-limiter waits.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		CacheEntries: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geoetl_geocache_entries",
			Help: "Current number of entries in the geocoding cache.",
		}),
	}
}
