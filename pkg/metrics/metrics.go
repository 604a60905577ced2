// Package metrics holds the Prometheus collectors for a sitemap run.
//
// Each Metrics value owns its own registry so a run can be exported to a
// node_exporter textfile and tests never collide on the default registry.
//
//   - sitemapgen_pages_fetched_total{category}: pages fetched successfully
//   - sitemapgen_fetch_retries_total{error_type}: retried fetch attempts
//   - sitemapgen_fetch_failures_total{category}: pages abandoned after all retries
//   - sitemapgen_fetch_duration_seconds: upstream request latency
//   - sitemapgen_urls_written_total: URLs written to sitemap files
//   - sitemapgen_sitemap_files_written_total: sitemap files written
//   - sitemapgen_index_entries: entries in the last generated index
//   - sitemapgen_run_duration_seconds: wall time of the last run
//   - sitemapgen_last_success_timestamp_seconds: completion time of the last successful run
//   - sitemapgen_http_requests_total{method, status}: requests served by the output server
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sitemapgen"

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	Registry *prometheus.Registry

	PagesFetched  *prometheus.CounterVec
	FetchRetries  *prometheus.CounterVec
	FetchFailures *prometheus.CounterVec
	FetchDuration prometheus.Histogram
	URLsWritten   prometheus.Counter
	FilesWritten  prometheus.Counter
	IndexEntries  prometheus.Gauge
	RunDuration   prometheus.Gauge
	LastSuccess   prometheus.Gauge
	HTTPRequests  *prometheus.CounterVec
}

// New creates the collectors on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,
		PagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Upstream pages fetched successfully",
		}, []string{"category"}),
		FetchRetries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_retries_total",
			Help:      "Upstream fetch attempts that were retried",
		}, []string{"error_type"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Upstream pages abandoned after exhausting retries",
		}, []string{"category"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Latency of single upstream requests",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}),
		URLsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "urls_written_total",
			Help:      "URLs written to sitemap files",
		}),
		FilesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sitemap_files_written_total",
			Help:      "Sitemap files written",
		}),
		IndexEntries: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_entries",
			Help:      "Entries in the most recently generated sitemap index",
		}),
		RunDuration: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the most recent generation run",
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time at which the last generation run completed",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Requests served by the output server",
		}, []string{"method", "status"}),
	}
}

// WithRuntimeCollectors adds the Go runtime and process collectors, for the
// long-running output server
func (m *Metrics) WithRuntimeCollectors() *Metrics {
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObservePage records a successful page fetch
func (m *Metrics) ObservePage(category string) {
	m.PagesFetched.WithLabelValues(category).Inc()
}

// ObserveRetry records a retried attempt
func (m *Metrics) ObserveRetry(errorType string) {
	m.FetchRetries.WithLabelValues(errorType).Inc()
}

// ObserveFailure records a page abandoned after all retries
func (m *Metrics) ObserveFailure(category string) {
	m.FetchFailures.WithLabelValues(category).Inc()
}

// ObserveFetchDuration records the latency of one upstream request
func (m *Metrics) ObserveFetchDuration(d time.Duration) {
	m.FetchDuration.Observe(d.Seconds())
}

// ObserveFile records a sitemap file holding urls entries
func (m *Metrics) ObserveFile(urls int) {
	m.FilesWritten.Inc()
	m.URLsWritten.Add(float64(urls))
}

// ObserveRun records the completion of a generation run
func (m *Metrics) ObserveRun(duration time.Duration, indexEntries int, finished time.Time) {
	m.RunDuration.Set(duration.Seconds())
	m.IndexEntries.Set(float64(indexEntries))
	m.LastSuccess.Set(float64(finished.Unix()))
}

// ObserveHTTPRequest records a request served by the output server
func (m *Metrics) ObserveHTTPRequest(method string, status int) {
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

// WriteTextfile writes the registry in the text exposition format, for the
// node_exporter textfile collector
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}

// Handler serves the registry over HTTP
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}
