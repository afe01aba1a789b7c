package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce        sync.Once
	adminRequestsTotal  *prometheus.CounterVec
	adminLatencySeconds *prometheus.HistogramVec
	adminErrorsTotal    *prometheus.CounterVec
	scoringAttempts     *prometheus.CounterVec
	scoringItems        *prometheus.CounterVec
	batchProgress       *prometheus.GaugeVec
	batchRunning        prometheus.Gauge
	scoreEvents         *prometheus.CounterVec
	streamClients       prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the service.
func RegisterMetrics() {
	registerOnce.Do(func() {
		adminRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_requests_total",
			Help: "Total number of admin API requests served.",
		}, []string{"method", "route", "status"})

		adminLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "admin_latency_seconds",
			Help:    "Latency distribution for admin API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		adminErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "admin_errors_total",
			Help: "Total number of error responses returned by admin endpoints.",
		}, []string{"method", "route", "status"})

		scoringAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_attempts_total",
			Help: "Single-item scoring attempts by outcome.",
		}, []string{"outcome"})

		scoringItems = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scoring_batch_items_total",
			Help: "Batch items by result (completed, requeued, failed).",
		}, []string{"result"})

		batchProgress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "scoring_batch_progress",
			Help: "Progress counters of the current or last batch run.",
		}, []string{"field"})

		batchRunning = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scoring_batch_running",
			Help: "1 while a batch run is in progress.",
		})

		scoreEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "score_events_published_total",
			Help: "Score change events published to the message bus.",
		}, []string{"type"})

		streamClients = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scoring_stream_clients_active",
			Help: "Connected batch progress stream clients.",
		})

		prometheus.MustRegister(
			adminRequestsTotal, adminLatencySeconds, adminErrorsTotal,
			scoringAttempts, scoringItems, batchProgress, batchRunning,
			scoreEvents, streamClients,
		)
	})
}

// AdminRequests exposes the counter for admin requests.
func AdminRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return adminRequestsTotal
}

// AdminLatency exposes the latency histogram for admin requests.
func AdminLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return adminLatencySeconds
}

// AdminErrors exposes the counter for admin error responses.
func AdminErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return adminErrorsTotal
}

// ScoringAttempts counts ScoreOne attempts.
func ScoringAttempts() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringAttempts
}

// ScoringItems counts batch item outcomes.
func ScoringItems() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringItems
}

// BatchProgress exposes total/completed/failed of the batch run.
func BatchProgress() *prometheus.GaugeVec {
	RegisterMetrics()
	return batchProgress
}

// BatchRunning reports whether a batch run is active.
func BatchRunning() prometheus.Gauge {
	RegisterMetrics()
	return batchRunning
}

// ScoreEventsPublished counts published score events.
func ScoreEventsPublished() *prometheus.CounterVec {
	RegisterMetrics()
	return scoreEvents
}

// StreamClientsActive tracks SSE and websocket subscribers.
func StreamClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return streamClients
}
