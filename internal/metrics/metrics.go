// Package metrics provides the centralized Prometheus metrics registry for
// the sweep service.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	JobsSubmittedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "jobs_submitted_total",
		Help:      "Total number of sweep jobs submitted",
	})
	JobsTerminalTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "jobs_terminal_total",
		Help:      "Total number of jobs reaching a terminal status",
	}, []string{"status"})
	EvaluationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "evaluations_total",
		Help:      "Total number of parameter combination evaluations",
	}, []string{"outcome"})
	ResultsPersistedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "results_persisted_total",
		Help:      "Total number of sweep results written to storage",
	})
	SelectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "selections_total",
		Help:      "Total number of best-parameter selections by algorithm",
	}, []string{"algorithm"})
	WebhookDeliveriesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "webhook_deliveries_total",
		Help:      "Total number of webhook delivery attempts",
	}, []string{"outcome"})
	ProgressEventsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sweep_service",
		Name:      "progress_events_total",
		Help:      "Total number of progress events published",
	})
)

// Gauge metrics
var (
	RunningJobs = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweep_service",
		Name:      "running_jobs",
		Help:      "Number of jobs currently executing",
	})
	ActiveSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweep_service",
		Name:      "active_subscribers",
		Help:      "Number of active progress stream subscribers",
	})
	ActiveTopics = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sweep_service",
		Name:      "active_topics",
		Help:      "Number of progress topics held by the broadcaster",
	})
)

// Histogram metrics
var (
	EvaluationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sweep_service",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of a single parameter combination evaluation in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	JobDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sweep_service",
		Name:      "job_duration_seconds",
		Help:      "Wall-clock duration of sweep jobs in seconds",
		Buckets:   []float64{1, 5, 10, 30, 60, 300, 600, 1800, 3600},
	})
	PersistBatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sweep_service",
		Name:      "persist_batch_duration_seconds",
		Help:      "Duration of result batch writes in seconds",
		Buckets:   prometheus.DefBuckets,
	})
	WebhookDeliveryDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sweep_service",
		Name:      "webhook_delivery_duration_seconds",
		Help:      "Duration of webhook delivery attempts in seconds",
		Buckets:   prometheus.DefBuckets,
	})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		// Register counter metrics
		registry.MustRegister(JobsSubmittedTotal)
		registry.MustRegister(JobsTerminalTotal)
		registry.MustRegister(EvaluationsTotal)
		registry.MustRegister(ResultsPersistedTotal)
		registry.MustRegister(SelectionsTotal)
		registry.MustRegister(WebhookDeliveriesTotal)
		registry.MustRegister(ProgressEventsTotal)

		// Register gauge metrics
		registry.MustRegister(RunningJobs)
		registry.MustRegister(ActiveSubscribers)
		registry.MustRegister(ActiveTopics)

		// Register histogram metrics
		registry.MustRegister(EvaluationDuration)
		registry.MustRegister(JobDuration)
		registry.MustRegister(PersistBatchDuration)
		registry.MustRegister(WebhookDeliveryDuration)
	})
	return registry
}

// GetRegistry returns the global Prometheus registry.
func GetRegistry() *prometheus.Registry {
	if registry == nil {
		return InitRegistry()
	}
	return registry
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}

// RecordJobSubmitted records a job submission event.
func RecordJobSubmitted() {
	JobsSubmittedTotal.Inc()
}

// RecordJobTerminal records a job reaching a terminal status.
func RecordJobTerminal(status string) {
	JobsTerminalTotal.WithLabelValues(status).Inc()
}

// RecordEvaluation records a single combination evaluation and its duration.
func RecordEvaluation(outcome string, durationSeconds float64) {
	EvaluationsTotal.WithLabelValues(outcome).Inc()
	EvaluationDuration.Observe(durationSeconds)
}

// RecordResultsPersisted records a batch of persisted results.
func RecordResultsPersisted(count int, durationSeconds float64) {
	ResultsPersistedTotal.Add(float64(count))
	PersistBatchDuration.Observe(durationSeconds)
}

// RecordSelection records a best-parameter selection event.
func RecordSelection(algorithm string) {
	SelectionsTotal.WithLabelValues(algorithm).Inc()
}

// RecordWebhookDelivery records a webhook delivery attempt.
func RecordWebhookDelivery(outcome string, durationSeconds float64) {
	WebhookDeliveriesTotal.WithLabelValues(outcome).Inc()
	WebhookDeliveryDuration.Observe(durationSeconds)
}

// RecordProgressEvent records a published progress event.
func RecordProgressEvent() {
	ProgressEventsTotal.Inc()
}

// RecordJobDuration records the wall-clock duration of a finished job.
func RecordJobDuration(durationSeconds float64) {
	JobDuration.Observe(durationSeconds)
}

// UpdateRunningJobs adjusts the running jobs gauge by delta.
func UpdateRunningJobs(delta float64) {
	RunningJobs.Add(delta)
}

// UpdateActiveSubscribers adjusts the active subscribers gauge by delta.
func UpdateActiveSubscribers(delta float64) {
	ActiveSubscribers.Add(delta)
}

// UpdateActiveTopics sets the active topics gauge.
func UpdateActiveTopics(count float64) {
	ActiveTopics.Set(count)
}
