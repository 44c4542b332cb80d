package relay

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels for inference metrics.
const (
	outcomeOK        = "ok"
	outcomeExitError = "exit_error"
	outcomeSpawn     = "spawn_error"
	outcomeTimeout   = "timeout"
	outcomeBusy      = "busy"
	outcomeRejected  = "rejected"
	outcomeCanceled  = "canceled"
	outcomeError     = "error"
)

var (
	inferenceRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tutord",
			Subsystem: "inference",
			Name:      "runs_total",
			Help:      "Inference process runs by outcome",
		},
		[]string{"outcome"},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tutord",
			Subsystem: "inference",
			Name:      "duration_seconds",
			Help:      "Wall time of inference process runs in seconds",
			// 0.25s .. ~8.5min
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 12),
		},
		[]string{"outcome"},
	)

	inferenceInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tutord",
			Subsystem: "inference",
			Name:      "inflight",
			Help:      "Inference processes currently running",
		},
	)
)

func init() {
	prometheus.MustRegister(inferenceRunsTotal, inferenceDuration, inferenceInflight)
}
