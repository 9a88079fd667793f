package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Label values shared by the domain counters.
const (
	ResultSuccess  = "success"
	ResultFailure  = "failure"
	ResultDropped  = "dropped"
	ResultAllowed  = "allowed"
	ResultRejected = "rejected"
	ResultFailOpen = "fail_open"
)

// MetricsService owns the Prometheus registry for HTTP and pipeline instrumentation. A nil
// *MetricsService is valid and records nothing.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	rateLimit       *prometheus.CounterVec
	mirrorWrites    *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	resolutions     *prometheus.CounterVec
	uploads         *prometheus.CounterVec
	archived        prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		rateLimit: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docaccess_rate_limit_decisions_total",
			Help: "Admission decisions taken by the request rate limiter",
		}, []string{"result"}),
		mirrorWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docaccess_analytics_mirror_writes_total",
			Help: "Analytics mirror write outcomes after retries",
		}, []string{"op", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docaccess_notifications_total",
			Help: "Outcome emails sent to requesters",
		}, []string{"result"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docaccess_resolutions_total",
			Help: "Reviewer decisions applied to requests",
		}, []string{"status"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docaccess_artifact_uploads_total",
			Help: "Approved artifact uploads to object storage",
		}, []string{"result"}),
		archived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docaccess_requests_archived_total",
			Help: "Requests moved to the archive collection",
		}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(m.requestDuration, m.requestTotal, m.rateLimit, m.mirrorWrites,
		m.notifications, m.resolutions, m.uploads, m.archived, goroutines)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
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

// Registry returns the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, code).Inc()
}

// RecordRateLimit counts one admission decision.
func (m *MetricsService) RecordRateLimit(result string) {
	if m == nil {
		return
	}
	m.rateLimit.WithLabelValues(result).Inc()
}

// RecordMirrorWrite counts the final outcome of a mirror operation.
func (m *MetricsService) RecordMirrorWrite(op, result string) {
	if m == nil {
		return
	}
	m.mirrorWrites.WithLabelValues(op, result).Inc()
}

// RecordNotification counts one email outcome.
func (m *MetricsService) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(result).Inc()
}

// RecordResolution counts one applied decision.
func (m *MetricsService) RecordResolution(status string) {
	if m == nil {
		return
	}
	m.resolutions.WithLabelValues(status).Inc()
}

// RecordUpload counts one artifact upload attempt.
func (m *MetricsService) RecordUpload(result string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(result).Inc()
}

// RecordArchived adds n archived requests.
func (m *MetricsService) RecordArchived(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.archived.Add(float64(n))
}
