package risk

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	KillSwitchEnabled = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_risk_kill_switch_enabled",
		Help: "1 if trading is currently permitted, 0 if the kill switch has tripped",
	})

	KillSwitchBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_risk_wallet_balance_usdc",
		Help: "Last observed wallet USDC balance",
	})

	KillSwitchTripsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_risk_kill_switch_trips_total",
		Help: "Total number of times the kill switch has disabled trading",
	})

	OpportunitiesGatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_risk_opportunities_gated_total",
		Help: "Total number of opportunities passed or rejected by the risk gate, by outcome",
	}, []string{"outcome"})

	RejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_risk_rejections_total",
		Help: "Total number of risk rejections, by reason",
	}, []string{"reason"})

	OpenExposure = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_risk_open_exposure_usd",
		Help: "Current aggregate reserved-plus-open exposure",
	})

	GateDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_risk_gate_duration_seconds",
		Help:    "Duration of one risk-gate pass over an opportunity",
		Buckets: prometheus.DefBuckets,
	})
)
