// Package observability provides Prometheus metrics for the application.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relaydl"

// Metrics holds all application metrics.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Job metrics
	JobsStarted    prometheus.Counter
	JobsCompleted  prometheus.Counter
	JobsFailed     *prometheus.CounterVec
	JobsInProgress prometheus.Gauge
	JobDuration    prometheus.Histogram

	// Poll metrics
	PollTicks    *prometheus.CounterVec
	PollProgress prometheus.Gauge

	// Resolver metrics
	Resolutions *prometheus.CounterVec

	// Remote service metrics
	RemoteRequestsTotal   *prometheus.CounterVec
	RemoteRequestDuration *prometheus.HistogramVec

	// Artifact metrics
	ArtifactBytes prometheus.Counter

	// Storage metrics
	CleanupFilesTotal prometheus.Counter

	// Proxy metrics
	ProxyRequestsTotal *prometheus.CounterVec
	ProxyFailures      *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec
}

// New creates all application metrics and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	metrics := &Metrics{
		// Job metrics
		JobsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "started_total",
			Help:      "Total number of jobs started on the remote service",
		}),
		JobsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "completed_total",
			Help:      "Total number of jobs whose artifact was saved",
		}),
		JobsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "failed_total",
			Help:      "Total number of jobs that failed, by reason",
		}, []string{"reason"}),
		JobsInProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "in_progress",
			Help:      "Number of jobs currently in progress",
		}),
		JobDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "duration_seconds",
			Help:      "Histogram of job duration from start to terminal state in seconds",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}),

		// Poll metrics
		PollTicks: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "ticks_total",
			Help:      "Total number of progress checks, by result",
		}, []string{"result"}),
		PollProgress: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "poll",
			Name:      "progress_percent",
			Help:      "Progress of the current job in percent",
		}),

		// Resolver metrics
		Resolutions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Total number of metadata resolutions, by result",
		}, []string{"result"}),

		// Remote service metrics
		RemoteRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "requests_total",
			Help:      "Total number of requests to the remote service",
		}, []string{"op", "status"}),
		RemoteRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "remote",
			Name:      "request_duration_seconds",
			Help:      "Histogram of remote service request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		// Artifact metrics
		ArtifactBytes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "artifact",
			Name:      "bytes_total",
			Help:      "Total bytes of saved artifacts",
		}),

		// Storage metrics
		CleanupFilesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "cleanup_files_total",
			Help:      "Total number of orphaned partial files removed",
		}),

		// Proxy metrics
		ProxyRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "requests_total",
			Help:      "Total number of requests made through proxies",
		}, []string{"proxy"}),
		ProxyFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "proxy",
			Name:      "failures_total",
			Help:      "Total number of failed proxy health checks",
		}, []string{"proxy"}),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of local API requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Histogram of local API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		HTTPResponseSize: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "Histogram of local API response sizes in bytes",
			Buckets:   []float64{100, 1000, 10000, 100000, 1000000},
		}, []string{"method", "path"}),
	}

	return metrics
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// JobTimer returns a function to record job duration.
func (m *Metrics) JobTimer() func() {
	start := time.Now()

	return func() {
		if m == nil {
			return
		}

		m.JobDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordJobStarted increments the jobs started counter.
func (m *Metrics) RecordJobStarted() {
	if m == nil {
		return
	}

	m.JobsStarted.Inc()
	m.JobsInProgress.Inc()
}

// RecordJobCompleted records a completed job.
func (m *Metrics) RecordJobCompleted(bytes int64) {
	if m == nil {
		return
	}

	m.JobsCompleted.Inc()
	m.JobsInProgress.Dec()
	m.PollProgress.Set(0)
	m.ArtifactBytes.Add(float64(bytes))
}

// RecordJobFailed records a failed job. started tells whether the job had
// been counted as in progress.
func (m *Metrics) RecordJobFailed(reason string, started bool) {
	if m == nil {
		return
	}

	m.JobsFailed.WithLabelValues(reason).Inc()
	m.PollProgress.Set(0)

	if started {
		m.JobsInProgress.Dec()
	}
}

// RecordTick records the result of one progress check.
func (m *Metrics) RecordTick(result string, progress float64) {
	if m == nil {
		return
	}

	m.PollTicks.WithLabelValues(result).Inc()

	if result == "ok" {
		m.PollProgress.Set(progress)
	}
}

// RecordResolution records a metadata resolution.
func (m *Metrics) RecordResolution(result string) {
	if m == nil {
		return
	}

	m.Resolutions.WithLabelValues(result).Inc()
}

// RecordRemoteRequest records a request to the remote service.
// status is the HTTP status code, or 0 for transport failures.
func (m *Metrics) RecordRemoteRequest(op string, status int, duration time.Duration) {
	if m == nil {
		return
	}

	statusStr := "error"
	if status > 0 {
		statusStr = strconv.Itoa(status)
	}

	m.RemoteRequestsTotal.WithLabelValues(op, statusStr).Inc()
	m.RemoteRequestDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordCleanup records cleanup metrics.
func (m *Metrics) RecordCleanup(files int) {
	if m == nil {
		return
	}

	m.CleanupFilesTotal.Add(float64(files))
}

// RecordProxyRequest records a proxy request.
func (m *Metrics) RecordProxyRequest(proxy string) {
	if m == nil {
		return
	}

	m.ProxyRequestsTotal.WithLabelValues(proxy).Inc()
}

// RecordProxyFailure records a proxy failure.
func (m *Metrics) RecordProxyFailure(proxy string) {
	if m == nil {
		return
	}

	m.ProxyFailures.WithLabelValues(proxy).Inc()
}

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration, size int) {
	if m == nil {
		return
	}

	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(size))
}
