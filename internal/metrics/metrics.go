// Package metrics registers the process-wide prometheus collectors served
// on /metrics from cmd/bridged (spec.md §7), promoting the teacher's
// transitive client_golang dependency to a direct, exercised import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Ticks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fibermesh",
		Name:      "orchestrator_ticks_total",
		Help:      "Generational ticks run by the orchestrator.",
	})

	TicksSkippedHealthGate = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fibermesh",
		Name:      "orchestrator_ticks_skipped_total",
		Help:      "Ticks skipped because the health gate reported not-ready or a fork.",
	})

	Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fibermesh",
		Name:      "bridge_submissions_total",
		Help:      "Bridge submissions by result class.",
	}, []string{"result"})

	Rejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fibermesh",
		Name:      "intake_rejections_total",
		Help:      "Rejected-transaction webhooks indexed.",
	})

	Confirmations = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fibermesh",
		Name:      "intake_confirmations_total",
		Help:      "Snapshot confirmation webhooks processed.",
	})

	Population = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fibermesh",
		Name:      "population_size",
		Help:      "Current active agent population.",
	})

	Temperature = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "fibermesh",
		Name:      "softmax_temperature",
		Help:      "Current softmax temperature after annealing.",
	})
)

// ResultClass labels a bridge submission outcome for the Submissions
// counter vector.
type ResultClass string

const (
	ResultSuccess          ResultClass = "success"
	ResultValidationError  ResultClass = "validation_error"
	ResultStateConflict    ResultClass = "state_conflict"
	ResultUpstreamRejected ResultClass = "upstream_rejected"
	ResultNetworkError     ResultClass = "network_error"
)

// ObserveSubmission increments the Submissions counter for result.
func ObserveSubmission(result ResultClass) {
	Submissions.WithLabelValues(string(result)).Inc()
}
