package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the API and the sync core.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	syncItems       *prometheus.CounterVec
	syncBatch       prometheus.Histogram
	syncDuration    prometheus.Histogram
	uploadLifecycle *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "client", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "client", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	syncItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "sync_items_total",
		Help: "Submission items processed by outcome",
	}, []string{"outcome"})

	syncBatch := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_batch_size",
		Help:    "Number of items per sync batch",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	})

	syncDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "sync_batch_duration_seconds",
		Help:    "Time spent processing one sync batch",
		Buckets: prometheus.DefBuckets,
	})

	uploadLifecycle := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_lifecycle_total",
		Help: "Multipart upload transitions by state",
	}, []string{"state"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		syncItems, syncBatch, syncDuration, uploadLifecycle, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		syncItems:       syncItems,
		syncBatch:       syncBatch,
		syncDuration:    syncDuration,
		uploadLifecycle: uploadLifecycle,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Client labels for HTTP request metrics.
const (
	ClientDevice = "device"
	ClientAPI    = "api"
)

// ObserveHTTPRequest records request metrics. client is ClientDevice or ClientAPI.
func (m *MetricsService) ObserveHTTPRequest(method, path, client string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, client, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, client, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordSyncItem counts one processed submission item.
func (m *MetricsService) RecordSyncItem(outcome string) {
	if m == nil {
		return
	}
	m.syncItems.WithLabelValues(outcome).Inc()
}

// ObserveSyncBatch records the size and duration of one batch.
func (m *MetricsService) ObserveSyncBatch(size int, duration time.Duration) {
	if m == nil {
		return
	}
	m.syncBatch.Observe(float64(size))
	m.syncDuration.Observe(duration.Seconds())
}

// RecordUploadState counts a multipart upload transition.
func (m *MetricsService) RecordUploadState(state string) {
	if m == nil {
		return
	}
	m.uploadLifecycle.WithLabelValues(state).Inc()
}
