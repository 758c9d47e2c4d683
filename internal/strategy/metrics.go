package strategy

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OpportunitiesEmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_strategy_opportunities_emitted_total",
			Help: "Total number of opportunities emitted, by strategy",
		},
		[]string{"strategy"},
	)

	OpportunitiesRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_strategy_opportunities_rejected_total",
			Help: "Total number of candidate opportunities rejected pre-risk, by strategy and reason",
		},
		[]string{"strategy", "reason"},
	)

	DetectionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyarb_strategy_detection_duration_seconds",
			Help:    "Duration of a single strategy's Detect call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"strategy"},
	)

	NetProfitBPS = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "polyarb_strategy_net_profit_bps",
			Help:    "Emitted opportunity net profit in basis points, by strategy",
			Buckets: []float64{10, 25, 50, 100, 200, 500, 1000, 2000, 5000},
		},
		[]string{"strategy"},
	)
)
