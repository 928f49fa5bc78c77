package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warsha"

// Collector holds the service's Prometheus metrics on a private registry.
// A nil *Collector is valid and records nothing.
type Collector struct {
	registry *prometheus.Registry

	CertificatesIssued  *prometheus.CounterVec
	RenderDuration      prometheus.Histogram
	NotificationsSent   *prometheus.CounterVec
	OrphanBlobsDeleted  prometheus.Counter
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Collector with its own registry, including Go runtime and process collectors.
func New() *Collector {
	reg := prometheus.NewRegistry()
	m := &Collector{
		registry: reg,
		CertificatesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificates_issued_total",
			Help:      "Certificate issuance attempts by outcome",
		}, []string{"mode", "status"}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "certificate_render_duration_seconds",
			Help:      "Time spent rendering one certificate PDF",
			Buckets:   prometheus.DefBuckets,
		}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notification deliveries by kind, channel and status",
		}, []string{"kind", "channel", "status"}),
		OrphanBlobsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "certificate_orphan_blobs_deleted_total",
			Help:      "Stored certificate objects removed because no issuance row references them",
		}),
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status_code"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	reg.MustRegister(
		m.CertificatesIssued,
		m.RenderDuration,
		m.NotificationsSent,
		m.OrphanBlobsDeleted,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Collector) Registry() *prometheus.Registry { return m.registry }

// RecordIssuance counts one issuance outcome; mode is "single" or "bulk".
func (m *Collector) RecordIssuance(mode, status string) {
	if m == nil {
		return
	}
	m.CertificatesIssued.WithLabelValues(mode, status).Inc()
}

// ObserveRender records how long a render took.
func (m *Collector) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// RecordNotification counts one delivery attempt.
func (m *Collector) RecordNotification(kind, channel, status string) {
	if m == nil {
		return
	}
	m.NotificationsSent.WithLabelValues(kind, channel, status).Inc()
}

// AddOrphansDeleted adds n to the orphan sweep counter.
func (m *Collector) AddOrphansDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.OrphanBlobsDeleted.Add(float64(n))
}

// RecordHTTPRequest records an HTTP request metric.
func (m *Collector) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
