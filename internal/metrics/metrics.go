// Package metrics exposes Prometheus counters for call volume, turn
// latency, and stage flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsStarted counts media streams that reached the start event.
	CallsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callflow_calls_started_total",
		Help: "Number of calls started.",
	})

	// CallsCompleted counts calls by terminal outcome.
	CallsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_calls_completed_total",
		Help: "Number of calls completed, by outcome.",
	}, []string{"outcome"})

	// Turns counts processed customer utterances.
	Turns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "callflow_turns_total",
		Help: "Number of conversation turns processed.",
	})

	// StageTransitions counts dialogue stage changes.
	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "callflow_stage_transitions_total",
		Help: "Number of stage transitions, by from/to stage.",
	}, []string{"from", "to"})

	// TurnDuration observes end-to-end turn latency (buffer flush to
	// last audio frame sent).
	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "callflow_turn_duration_seconds",
		Help:    "End-to-end turn processing latency.",
		Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 21},
	})

	// ActiveCalls tracks concurrently open sessions.
	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "callflow_active_calls",
		Help: "Number of currently active calls.",
	})
)
