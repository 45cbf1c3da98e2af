// Package metrics exposes Prometheus collectors for the archive service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	archivePagesFetchedTotal    *prometheus.CounterVec
	archivePageDurationSeconds  prometheus.Histogram
	archiveRecordsFoundTotal    prometheus.Counter
	archiveRecordsArchivedTotal prometheus.Counter
	archiveCrawlsTotal          *prometheus.CounterVec
	archiveCrawlDurationSeconds *prometheus.HistogramVec
	archiveRedirectsTotal       *prometheus.CounterVec
	httpRequestsTotal           *prometheus.CounterVec
	httpRequestDurationSeconds  *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		archivePagesFetchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_pages_fetched_total",
				Help: "Total number of listing pages fetched, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		archivePageDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "archive_page_fetch_duration_seconds",
				Help:    "Histogram of single listing page fetch latencies.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
		)

		archiveRecordsFoundTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "archive_records_found_total",
				Help: "Total number of article records seen on listing pages.",
			},
		)

		archiveRecordsArchivedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "archive_records_archived_total",
				Help: "Total number of article records newly archived.",
			},
		)

		archiveCrawlsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_crawls_total",
				Help: "Total number of crawls, labeled by mode and outcome.",
			},
			[]string{"mode", "outcome"},
		)

		archiveCrawlDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "archive_crawl_duration_seconds",
				Help:    "Histogram of crawl wall time, labeled by mode.",
				Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300},
			},
			[]string{"mode"},
		)

		archiveRedirectsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "archive_redirects_total",
				Help: "Total number of landing page redirects, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage records one successfully archived listing page.
func ObservePage(found, archived int, duration time.Duration) {
	archivePagesFetchedTotal.WithLabelValues("success").Inc()
	if duration > 0 {
		archivePageDurationSeconds.Observe(duration.Seconds())
	}
	if found > 0 {
		archiveRecordsFoundTotal.Add(float64(found))
	}
	if archived > 0 {
		archiveRecordsArchivedTotal.Add(float64(archived))
	}
}

// ObservePageError records a listing page that could not be archived.
func ObservePageError() {
	archivePagesFetchedTotal.WithLabelValues("error").Inc()
}

// ObserveCrawl records a finished crawl for the given mode.
func ObserveCrawl(mode, outcome string, duration time.Duration) {
	archiveCrawlsTotal.WithLabelValues(mode, outcome).Inc()
	if duration > 0 {
		archiveCrawlDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
	}
}

// ObserveRedirect records a landing page redirect attempt.
func ObserveRedirect(outcome string) {
	archiveRedirectsTotal.WithLabelValues(outcome).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
