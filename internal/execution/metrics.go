package execution

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_trades_total",
			Help: "Total number of leg fills executed",
		},
		[]string{"mode", "outcome"},
	)

	ProfitRealizedUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_profit_realized_usd",
			Help: "Cumulative profit realized (hypothetical for paper trading)",
		},
		[]string{"mode"},
	)

	ExecutionDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_execution_duration_seconds",
		Help:    "Duration of basket execution including submission",
		Buckets: prometheus.DefBuckets,
	})

	ExecutionErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_errors_total",
		Help: "Total number of execution errors",
	})

	ExecutionErrorsByType = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_errors_by_type_total",
			Help: "Total number of execution errors classified by type",
		},
		[]string{"error_type"},
	)

	OpportunitiesReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_opportunities_received_total",
		Help: "Total number of opportunities received for execution",
	})

	OpportunitiesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_opportunities_executed_total",
		Help: "Total number of opportunities where every leg filled",
	})

	OpportunitiesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_opportunities_skipped_total",
			Help: "Total number of opportunities skipped, by reason",
		},
		[]string{"reason"},
	)

	FillVerificationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_fill_verification_total",
			Help: "Fill verification attempts by result (success, partial, timeout, error)",
		},
		[]string{"result"},
	)

	FillVerificationDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_execution_fill_verification_duration_seconds",
		Help:    "Duration of fill verification",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60},
	})

	ActualFillPriceDeviation = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_execution_actual_fill_price_deviation",
		Help:    "Difference between submitted and actual fill price",
		Buckets: prometheus.LinearBuckets(-0.01, 0.001, 20),
	})

	// RecoveryActionsTotal tracks the compensating actions taken when a
	// basket fills only partially within the recovery window.
	RecoveryActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_execution_recovery_actions_total",
			Help: "Compensating actions taken on partial fills, by action",
		},
		[]string{"action"},
	)

	LegsSubmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_legs_submitted_total",
		Help: "Total number of individual legs submitted across all baskets",
	})

	LegsFilledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_execution_legs_filled_total",
		Help: "Total number of individual legs that reached full fill",
	})
)
