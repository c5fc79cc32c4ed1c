package analytics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// EngineOpsTotal counts engine operations by type and result.
	EngineOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tokensight",
			Name:      "engine_operations_total",
			Help:      "Total engine operations by type and result.",
		},
		[]string{"type", "result"},
	)

	// EngineOpDuration observes operation latency by type.
	EngineOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tokensight",
			Name:      "engine_operation_duration_seconds",
			Help:      "Engine operation duration in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		},
		[]string{"type"},
	)

	// RiskScoreObserved samples the risk score produced by each transfer.
	RiskScoreObserved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "tokensight",
			Name:      "risk_score",
			Help:      "Risk score distribution across recorded transfers.",
			Buckets:   []float64{0, 10, 20, 30, 40, 50, 60, 75, 100},
		},
	)

	// AccountsRegistered tracks total registered accounts.
	AccountsRegistered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tokensight",
			Name:      "accounts_registered",
			Help:      "Number of registered accounts.",
		},
	)

	// AccountsFlagged tracks accounts that have ever crossed the high-risk
	// threshold. Monotonic, matching the engine's flagged counter.
	AccountsFlagged = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tokensight",
			Name:      "accounts_flagged",
			Help:      "Number of accounts ever flagged as high risk.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		EngineOpsTotal,
		EngineOpDuration,
		RiskScoreObserved,
		AccountsRegistered,
		AccountsFlagged,
	)
}

// observeOp starts timing an operation; the returned func records the
// duration and the final result label.
func observeOp(opType string) func(result string) {
	start := time.Now()
	return func(result string) {
		EngineOpsTotal.WithLabelValues(opType, result).Inc()
		EngineOpDuration.WithLabelValues(opType).Observe(time.Since(start).Seconds())
	}
}
