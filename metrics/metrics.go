// Package metrics provides Prometheus metrics for the API server and the
// ingestion tools.
//
// HTTP:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - http_response_size_bytes: Histogram with the path label
//
// Dataset and preferences:
//   - dataset_medications: Gauge with the size of the current snapshot
//   - dataset_reloads_total: Counter with a result label
//   - favorites_total: Gauge with the number of favorites
//
// Ingestion:
//   - infarmed_searches_total, infarmed_documents_total,
//     pdftext_conversions_total, sections_files_total
//
// All metrics are registered with the Prometheus default registry during
// package initialization.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response body size",
			Buckets: prometheus.ExponentialBuckets(256, 4, 7),
		},
		[]string{"path"},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	DatasetMedications = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_medications",
			Help: "Medications in the current dataset snapshot",
		},
	)

	DatasetReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_reloads_total",
			Help: "Dataset reload attempts by result (loaded, unchanged, failed)",
		},
		[]string{"result"},
	)

	FavoritesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "favorites_total",
			Help: "Number of favorite medications",
		},
	)

	InfarmedSearches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infarmed_searches_total",
			Help: "Portal searches by result (hit, empty)",
		},
		[]string{"result"},
	)

	InfarmedCandidates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "infarmed_candidates_total",
			Help: "Eligible result rows decoded from the portal",
		},
	)

	InfarmedDocuments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "infarmed_documents_total",
			Help: "Document download outcomes by type (rcm, fi) and status",
		},
		[]string{"type", "status"},
	)

	PdftextConversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pdftext_conversions_total",
			Help: "PDF to text conversions by result",
		},
		[]string{"result"},
	)

	SectionsFiles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sections_files_total",
			Help: "Parsed text files by document type",
		},
		[]string{"type"},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(HTTPResponseSize)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(DatasetMedications)
	prometheus.MustRegister(DatasetReloads)
	prometheus.MustRegister(FavoritesTotal)
	prometheus.MustRegister(InfarmedSearches)
	prometheus.MustRegister(InfarmedCandidates)
	prometheus.MustRegister(InfarmedDocuments)
	prometheus.MustRegister(PdftextConversions)
	prometheus.MustRegister(SectionsFiles)
}

// WriteTextfile writes every registered metric to path in the Prometheus text
// format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, prometheus.DefaultGatherer); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", path, err)
	}
	return nil
}
