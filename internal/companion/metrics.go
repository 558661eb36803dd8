package companion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the engine's Prometheus counters.
type Metrics struct {
	TriggersFired *prometheus.CounterVec
	TriggerErrors *prometheus.CounterVec
	Feedback      *prometheus.CounterVec
	Recomputes    prometheus.Counter
	Dropped       prometheus.Counter
}

// NewMetrics registers the counters with reg. A nil reg uses a private
// registry, so several engines can coexist in one process.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		TriggersFired: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Name:      "triggers_fired_total",
				Help:      "Proactive messages produced and queued, by message type.",
			},
			[]string{"type"},
		),
		TriggerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Name:      "trigger_errors_total",
				Help:      "Trigger evaluations skipped after a failure.",
			},
			[]string{"trigger"},
		),
		Feedback: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "companion",
				Name:      "messages_feedback_total",
				Help:      "Traveler responses: dismissed, acted, selected, not_interested.",
			},
			[]string{"outcome"},
		),
		Recomputes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "recomputes_total",
			Help:      "Re-score and trigger sweeps.",
		}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "companion",
			Name:      "queue_dropped_total",
			Help:      "Events dropped because the engine queue was full.",
		}),
	}
}
