package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result sources for AnnotationResultsCreated.
const (
	SourceAnnotator = "annotator"
	SourceDetector  = "detector"
)

var (
	// API
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aplose_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aplose_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "aplose_api_active_requests",
			Help: "Current number of in-flight API requests",
		},
	)

	// Annotation workflow
	TaskSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aplose_task_submissions_total",
			Help: "Total number of annotation task submissions",
		},
		[]string{"usage"},
	)

	AnnotationResultsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "aplose_annotation_results_created_total",
			Help: "Total number of annotation results written",
		},
		[]string{"source"},
	)

	// Database
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "aplose_db_query_duration_seconds",
			Help:    "Duration of SQLite operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements the in-flight gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordTaskSubmission counts a submitted task for the campaign usage label.
func RecordTaskSubmission(usage string) {
	TaskSubmissionsTotal.WithLabelValues(usage).Inc()
}

// RecordResultsCreated adds count results for source.
func RecordResultsCreated(source string, count int) {
	if count <= 0 {
		return
	}
	AnnotationResultsCreated.WithLabelValues(source).Add(float64(count))
}

// ObserveDBQuery records the time elapsed since started. Intended for defer.
func ObserveDBQuery(operation string, started time.Time) {
	DBQueryDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
