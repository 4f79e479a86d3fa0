package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sma-drive-api/pkg/jobs"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and drive operations.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	quotaRejections prometheus.Counter
	bulkItems       *prometheus.CounterVec
	contentBytes    *prometheus.CounterVec
	copyRequests    *prometheus.CounterVec
	bandwidthDenied prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	quotaRejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drive_quota_rejections_total",
		Help: "Reservations refused because the drive limit would be exceeded",
	})

	bulkItems := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_bulk_items_total",
		Help: "Items processed by bulk operations",
	}, []string{"operation", "outcome"})

	contentBytes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_content_bytes_total",
		Help: "Bytes moved through the content store",
	}, []string{"direction"})

	copyRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "drive_copy_request_transitions_total",
		Help: "Copy request state transitions",
	}, []string{"transition"})

	bandwidthDenied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "drive_bandwidth_denied_total",
		Help: "Downloads refused by the bandwidth limiter",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		quotaRejections, bulkItems, contentBytes, copyRequests, bandwidthDenied, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		quotaRejections: quotaRejections,
		bulkItems:       bulkItems,
		contentBytes:    contentBytes,
		copyRequests:    copyRequests,
		bandwidthDenied: bandwidthDenied,
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

// TrackQueue exports the counters of a background queue as gauges.
func (m *MetricsService) TrackQueue(name string, stats func() jobs.Stats) {
	if m == nil || stats == nil {
		return
	}
	labels := prometheus.Labels{"queue": name}
	gauge := func(metric, help string, pick func(jobs.Stats) int64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        metric,
			Help:        help,
			ConstLabels: labels,
		}, func() float64 { return float64(pick(stats())) })
	}
	m.registry.MustRegister(
		gauge("jobs_pending", "Jobs waiting in the queue buffer", func(s jobs.Stats) int64 { return int64(s.Pending) }),
		gauge("jobs_processed", "Jobs completed successfully", func(s jobs.Stats) int64 { return s.Processed }),
		gauge("jobs_retried", "Job attempts scheduled for retry", func(s jobs.Stats) int64 { return s.Retried }),
		gauge("jobs_abandoned", "Jobs dropped after exhausting retries", func(s jobs.Stats) int64 { return s.Abandoned }),
	)
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordQuotaRejection counts a refused reservation.
func (m *MetricsService) RecordQuotaRejection() {
	if m == nil {
		return
	}
	m.quotaRejections.Inc()
}

// RecordBulkItem counts one bulk item by operation and outcome ("success" or an error code).
func (m *MetricsService) RecordBulkItem(operation, outcome string) {
	if m == nil {
		return
	}
	m.bulkItems.WithLabelValues(operation, outcome).Inc()
}

// AddContentBytes counts bytes written ("upload", "copy") or served ("download", "preview").
func (m *MetricsService) AddContentBytes(direction string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.contentBytes.WithLabelValues(direction).Add(float64(n))
}

// RecordCopyRequestTransition counts copy request workflow steps.
func (m *MetricsService) RecordCopyRequestTransition(transition string) {
	if m == nil {
		return
	}
	m.copyRequests.WithLabelValues(transition).Inc()
}

// RecordBandwidthDenied counts a refused download.
func (m *MetricsService) RecordBandwidthDenied() {
	if m == nil {
		return
	}
	m.bandwidthDenied.Inc()
}
