// Package metrics provides Prometheus instrumentation for attempt runs.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds every attempt metric. It is separate from the default
// registry so a textfile export contains only these series.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	// AttemptsTotal counts attempts by the policy decision that followed them.
	AttemptsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attempt",
		Name:      "attempts_total",
		Help:      "Total number of child command attempts.",
	}, []string{"decision"})

	// TimeoutsTotal counts attempts terminated for exceeding the timeout.
	TimeoutsTotal = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "attempt",
		Name:      "timeouts_total",
		Help:      "Total number of attempts that timed out.",
	})

	// RunsTotal counts finished runs by outcome.
	RunsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attempt",
		Name:      "runs_total",
		Help:      "Total number of runs by outcome.",
	}, []string{"outcome"})

	// AttemptDuration tracks the wall time of each attempt, spawn to reap.
	AttemptDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attempt",
		Name:      "attempt_duration_seconds",
		Help:      "Duration of a single attempt in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})

	// BackoffSleep tracks the shaped delays slept between attempts.
	BackoffSleep = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attempt",
		Name:      "backoff_sleep_seconds",
		Help:      "Time slept between attempts in seconds.",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
	})

	// RunInfo exposes static run metadata as labels.
	RunInfo = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "attempt",
		Name:      "run_info",
		Help:      "Static run metadata.",
	}, []string{"version", "strategy"})
)

// Init sets static run metadata on the info metric.
func Init(version, strategy string) {
	RunInfo.WithLabelValues(version, strategy).Set(1)
}

// WriteTextfile writes every metric in Registry to path in the text exposition
// format, for collection by node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, Registry)
}
