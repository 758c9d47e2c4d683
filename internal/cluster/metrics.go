package cluster

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DetectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_cluster_detection_duration_seconds",
		Help:    "Duration of one cluster's combinatorial evaluation",
		Buckets: prometheus.DefBuckets,
	})

	ClustersTracked = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_cluster_clusters_tracked",
		Help: "Number of clusters currently assembled from live relations",
	})

	DirtyClusterQueueSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "polyarb_cluster_dirty_queue_size",
		Help: "Number of clusters awaiting re-evaluation",
	})

	RelationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_cluster_relations_expired_total",
		Help: "Total number of relations purged past their TTL",
	})

	RelationConflictsResolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_cluster_relation_conflicts_resolved_total",
		Help: "Total number of market-set/kind conflicts resolved by dropping the lower-confidence relation",
	})
)
