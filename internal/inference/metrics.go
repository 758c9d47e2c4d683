package inference

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesRunTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_inference_batches_run_total",
		Help: "Total number of inference batches submitted to the LLM",
	})

	BatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_inference_batch_failures_total",
		Help: "Total number of inference batches that failed after retry",
	})

	RelationsInferredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_inference_relations_inferred_total",
		Help: "Total number of relations parsed out of LLM responses",
	})

	RelationsAdmittedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "polyarb_inference_relations_admitted_total",
		Help: "Total number of relations admitted past the confidence floor",
	})

	RelationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "polyarb_inference_relations_rejected_total",
		Help: "Total number of relations rejected, by reason",
	}, []string{"reason"})

	BatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "polyarb_inference_batch_duration_seconds",
		Help:    "Duration of one inference batch round trip",
		Buckets: prometheus.DefBuckets,
	})
)
