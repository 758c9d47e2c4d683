package marketstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_marketstream_active_connections",
		Help: "Number of active market data stream connections (0 or 1)",
	})

	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_marketstream_reconnect_attempts_total",
		Help: "Total number of reconnection attempts",
	})

	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_marketstream_reconnect_failures_total",
		Help: "Total number of failed reconnection attempts",
	})

	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_marketstream_messages_received_total",
			Help: "Total number of stream messages received, by kind",
		},
		[]string{"kind"},
	)

	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_marketstream_messages_dropped_total",
			Help: "Total number of stream messages dropped, by reason",
		},
		[]string{"reason"},
	)

	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_marketstream_message_latency_seconds",
		Help:    "Time spent decoding and queuing a stream message",
		Buckets: prometheus.DefBuckets,
	})

	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_marketstream_subscription_count",
		Help: "Number of tokens currently subscribed",
	})

	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_marketstream_connection_duration_seconds",
		Help:    "Duration of a connection before it drops",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})
)
