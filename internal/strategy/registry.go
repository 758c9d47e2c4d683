package strategy

import (
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// Registry holds an ordered list of active strategies and runs them
// all against a single Context per detection cycle.
type Registry struct {
	strategies []Strategy
	logger     *zap.Logger
}

// New creates an empty Registry. Strategies are added with Register in
// the order they should run.
func New(logger *zap.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register appends a strategy to the active set.
func (r *Registry) Register(s Strategy) {
	r.strategies = append(r.strategies, s)
}

// Detect runs every registered strategy against ctx and returns the
// concatenation of their opportunities, in registration order.
func (r *Registry) Detect(ctx *Context) []*types.Opportunity {
	var out []*types.Opportunity
	for _, s := range r.strategies {
		start := time.Now()
		opps := s.Detect(ctx)
		DetectionDuration.WithLabelValues(string(s.Name())).Observe(time.Since(start).Seconds())
		if len(opps) > 0 {
			OpportunitiesEmittedTotal.WithLabelValues(string(s.Name())).Add(float64(len(opps)))
			r.logger.Debug("strategy-emitted-opportunities",
				zap.String("strategy", string(s.Name())), zap.Int("count", len(opps)))
		}
		out = append(out, opps...)
	}
	return out
}
