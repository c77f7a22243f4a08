package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce              sync.Once
	apiRequestsTotal          *prometheus.CounterVec
	apiLatencySeconds         *prometheus.HistogramVec
	apiErrorsTotal            *prometheus.CounterVec
	gradeRecalculationsTotal  *prometheus.CounterVec
	gradeRecalculationSeconds *prometheus.HistogramVec
	gradeEventsPublishedTotal *prometheus.CounterVec
	gpaCacheLookupsTotal      *prometheus.CounterVec
	gradeStreamClients        prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the API and the grading engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		gradeRecalculationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_recalculations_total",
			Help: "Enrollment grade recalculations by scope and outcome.",
		}, []string{"scope", "outcome"})

		gradeRecalculationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grade_recalculation_duration_seconds",
			Help:    "Time spent recomputing and persisting enrollment grades.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"scope"})

		gradeEventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grade_events_published_total",
			Help: "Grade change events published by transport.",
		}, []string{"transport", "outcome"})

		gpaCacheLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gpa_cache_lookups_total",
			Help: "GPA cache lookups by result.",
		}, []string{"result"})

		gradeStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "grade_stream_clients_active",
			Help: "Open websocket connections receiving grade events.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			gradeRecalculationsTotal,
			gradeRecalculationSeconds,
			gradeEventsPublishedTotal,
			gpaCacheLookupsTotal,
			gradeStreamClients,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// GradeRecalculations counts recalculations labelled by scope ("student", "class") and outcome.
func GradeRecalculations() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeRecalculationsTotal
}

// GradeRecalculationDuration observes how long a recalculation took.
func GradeRecalculationDuration() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradeRecalculationSeconds
}

// GradeEventsPublished counts published grade events.
func GradeEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return gradeEventsPublishedTotal
}

// GPACacheLookups counts GPA cache hits and misses.
func GPACacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return gpaCacheLookupsTotal
}

// GradeStreamClients tracks connected grade stream subscribers.
func GradeStreamClients() prometheus.Gauge {
	RegisterMetrics()
	return gradeStreamClients
}
