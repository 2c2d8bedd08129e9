package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	CheckoutRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_requests_total",
			Help: "Number of checkout initiations by outcome",
		},
		[]string{"outcome"},
	)

	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Number of gateway webhook deliveries by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	EnrollmentsApplied = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "enrollments_applied_total",
			Help: "Number of learner enrollments written by the reconciler",
		},
	)

	WebhookProcessingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "webhook_processing_time_seconds",
			Help: "Time taken to reconcile one gateway event",
		},
	)

	ProcessedTransitions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "processed_transitions_total",
			Help: "Number of ledger transitions consumed by the audit worker",
		},
	)

	TransitionProcessingTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "transition_processing_time_seconds",
			Help: "Time taken to process one ledger transition",
		},
	)

	DLQMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "transferred_messages_to_dlq_total",
			Help: "Number of messages transferred to DLQ",
		},
	)
)

// RegisterServer registers the collectors used by the API server.
func RegisterServer() {
	prometheus.MustRegister(CheckoutRequests, WebhookEvents, EnrollmentsApplied, WebhookProcessingTime)
}

// RegisterWorker registers the collectors used by the audit worker.
func RegisterWorker() {
	prometheus.MustRegister(ProcessedTransitions, TransitionProcessingTime, DLQMessages)
}
