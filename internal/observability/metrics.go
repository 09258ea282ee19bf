package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	schedulerQueueDepth  prometheus.Gauge
	schedulerActive      prometheus.Gauge
	schedulerJobs        *prometheus.CounterVec
	statusEventsTotal    *prometheus.CounterVec
	eventStreamClients   prometheus.Gauge
	galleryRequestsTotal *prometheus.CounterVec
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		schedulerQueueDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "generation_queue_depth",
			Help: "Number of generation jobs waiting to be dispatched.",
		})

		schedulerActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "generation_active_workers",
			Help: "Number of generation calls currently in flight.",
		})

		schedulerJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "generation_jobs_total",
			Help: "Total generation jobs completed, by terminal status.",
		}, []string{"status"})

		statusEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "submission_status_events_total",
			Help: "Total submission status events published.",
		}, []string{"status"})

		eventStreamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "event_stream_clients_active",
			Help: "Number of websocket clients subscribed to status events.",
		})

		galleryRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gallery_requests_total",
			Help: "Total gallery listing requests, by outcome.",
		}, []string{"outcome"})

		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests processed.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_request_errors_total",
			Help: "Total API requests that ended in an error status.",
		}, []string{"method", "route", "status"})

		prometheus.MustRegister(schedulerQueueDepth, schedulerActive, schedulerJobs, statusEventsTotal, eventStreamClients, galleryRequestsTotal, apiRequestsTotal, apiLatencySeconds, apiErrorsTotal)
	})
}

// SchedulerQueueDepth exposes the pending-job gauge.
func SchedulerQueueDepth() prometheus.Gauge {
	RegisterMetrics()
	return schedulerQueueDepth
}

// SchedulerActiveWorkers exposes the in-flight worker gauge.
func SchedulerActiveWorkers() prometheus.Gauge {
	RegisterMetrics()
	return schedulerActive
}

// SchedulerJobsProcessed exposes the completed-job counter.
func SchedulerJobsProcessed() *prometheus.CounterVec {
	RegisterMetrics()
	return schedulerJobs
}

// StatusEventsPublished exposes the status event counter.
func StatusEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return statusEventsTotal
}

// EventStreamClientsActive exposes the websocket subscriber gauge.
func EventStreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return eventStreamClients
}

// GalleryRequests exposes the gallery request counter.
func GalleryRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return galleryRequestsTotal
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the error counter.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}
