package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the engine.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	tierOpDuration  *prometheus.HistogramVec
	tierOpFailures  *prometheus.CounterVec
	queueDepth      *prometheus.GaugeVec
	queueCompleted  prometheus.Counter
	queueFailed     prometheus.Counter
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	cacheEvictions  prometheus.Counter
	automationMoves *prometheus.CounterVec
	uploadsTotal    *prometheus.CounterVec
}

// NewMetricsService registers the engine's Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	tierOpDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tier_operation_duration_seconds",
		Help:    "Duration of storage tier operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"tier", "operation"})

	tierOpFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tier_operation_failures_total",
		Help: "Total failed storage tier operations",
	}, []string{"tier", "operation"})

	queueDepth := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "sync_queue_depth",
		Help: "Sync queue items per status",
	}, []string{"status"})

	queueCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_queue_completed_total",
		Help: "Total completed sync queue items",
	})

	queueFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sync_queue_failed_total",
		Help: "Total terminally failed sync queue items",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_cache_hits_total",
		Help: "Total content cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_cache_misses_total",
		Help: "Total content cache misses",
	})

	cacheEvictions := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "content_cache_evictions_total",
		Help: "Total content cache evictions",
	})

	automationMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "automation_moves_total",
		Help: "Total tier moves scheduled by automation",
	}, []string{"preset", "to_tier"})

	uploadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "uploads_total",
		Help: "Total uploads by duplicate action outcome",
	}, []string{"action"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, tierOpDuration, tierOpFailures,
		queueDepth, queueCompleted, queueFailed, cacheHits, cacheMisses, cacheEvictions,
		automationMoves, uploadsTotal, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		tierOpDuration:  tierOpDuration,
		tierOpFailures:  tierOpFailures,
		queueDepth:      queueDepth,
		queueCompleted:  queueCompleted,
		queueFailed:     queueFailed,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		cacheEvictions:  cacheEvictions,
		automationMoves: automationMoves,
		uploadsTotal:    uploadsTotal,
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

// ObserveHTTPRequest records one request.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// ObserveTierOperation records one adapter call.
func (m *MetricsService) ObserveTierOperation(tier, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.tierOpDuration.WithLabelValues(tier, operation).Observe(duration.Seconds())
	if err != nil {
		m.tierOpFailures.WithLabelValues(tier, operation).Inc()
	}
}

// SetQueueDepth publishes the queue's per-status depth.
func (m *MetricsService) SetQueueDepth(pending, processing, completed, failed int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues("pending").Set(float64(pending))
	m.queueDepth.WithLabelValues("processing").Set(float64(processing))
	m.queueDepth.WithLabelValues("completed").Set(float64(completed))
	m.queueDepth.WithLabelValues("failed").Set(float64(failed))
}

// RecordQueueCompleted counts drained items.
func (m *MetricsService) RecordQueueCompleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.queueCompleted.Add(float64(n))
}

// RecordQueueFailure counts a terminal queue failure.
func (m *MetricsService) RecordQueueFailure() {
	if m == nil {
		return
	}
	m.queueFailed.Inc()
}

// RecordCacheHit counts a content cache hit.
func (m *MetricsService) RecordCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
}

// RecordCacheMiss counts a content cache miss.
func (m *MetricsService) RecordCacheMiss() {
	if m == nil {
		return
	}
	m.cacheMisses.Inc()
}

// RecordCacheEvictions counts swept cache entries.
func (m *MetricsService) RecordCacheEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.cacheEvictions.Add(float64(n))
}

// RecordAutomationMove counts one scheduled reclassification.
func (m *MetricsService) RecordAutomationMove(preset, toTier string) {
	if m == nil {
		return
	}
	m.automationMoves.WithLabelValues(preset, toTier).Inc()
}

// RecordUpload counts an upload by its duplicate action outcome.
func (m *MetricsService) RecordUpload(action string) {
	if m == nil {
		return
	}
	m.uploadsTotal.WithLabelValues(action).Inc()
}
