package providers

import (
	"chatstat/internal/structures"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncShardLoads(result string)
	AddUpdates(community string, count int)
}

// StorageStatsSource feeds the storage gauges.
type StorageStatsSource interface {
	OpenShards() int
	Communities() []string
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	shardLoads          *prometheus.CounterVec
	updatesTotal        *prometheus.CounterVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncShardLoads(result string) {
	m.shardLoads.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) AddUpdates(community string, count int) {
	m.updatesTotal.WithLabelValues(community).Add(float64(count))
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatstat_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chatstat_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatstat_cache_hits_total",
			Help: "Total number of response cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chatstat_cache_misses_total",
			Help: "Total number of response cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chatstat_persistence_duration_seconds",
			Help:    "Duration of shard and cursor flushes in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		shardLoads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatstat_shard_loads_total",
			Help: "Shard cache loads by outcome (loaded, created, evicted)",
		}, []string{"result"}),

		updatesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chatstat_updates_total",
			Help: "User update records applied per community",
		}, []string{"community"}),
	}
}

// RegisterStorageGauges exposes resident shard and community counts.
func RegisterStorageGauges(conf *structures.Config, source StorageStatsSource) {
	if !conf.Metrics.Enabled {
		return
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatstat_open_shards",
		Help: "Number of shards resident in memory",
	}, func() float64 {
		return float64(source.OpenShards())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "chatstat_communities",
		Help: "Number of communities with an open database",
	}, func() float64 {
		return float64(len(source.Communities()))
	})
}

// noopMetrics is used when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncShardLoads(_ string)                           {}
func (n *noopMetrics) AddUpdates(_ string, _ int)                       {}

// NewNoopMetrics returns a metrics provider that records nothing.
func NewNoopMetrics() MetricsProviderInterface {
	return &noopMetrics{}
}
