package orderbook

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesTotal tracks applied book updates by message kind.
	UpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_orderbook_updates_total",
			Help: "Total number of order book updates applied",
		},
		[]string{"kind"},
	)

	// BooksTracked tracks the number of order books currently in memory.
	BooksTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_orderbook_books_tracked",
		Help: "Number of order books tracked in memory",
	})

	// StaleSequenceTotal counts sequence gaps/regressions forcing resync.
	StaleSequenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "polyarb_orderbook_stale_sequence_total",
			Help: "Total number of stale-sequence events forcing a resync",
		},
		[]string{"token_id"},
	)

	// DirtySetSize tracks the number of tokens awaiting drain.
	DirtySetSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_orderbook_dirty_set_size",
		Help: "Number of tokens currently marked dirty",
	})

	// UpdateProcessingDuration tracks apply() latency.
	UpdateProcessingDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_orderbook_update_processing_duration_seconds",
		Help:    "Time to apply a single order book update",
		Buckets: []float64{0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
	})

	// LockContentionDuration tracks time waiting for the cache mutex.
	LockContentionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_orderbook_lock_contention_seconds",
		Help:    "Time waiting to acquire the order book mutex",
		Buckets: []float64{0.0001, 0.0002, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
)
