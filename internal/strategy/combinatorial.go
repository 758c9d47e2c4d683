package strategy

import (
	"github.com/polyarb/polyarb/internal/solver"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// Combinatorial projects a cluster's joint price vector onto the
// marginal polytope via Frank-Wolfe and emits an opportunity when the
// projection's duality gap clears the configured threshold. Unlike
// SingleCondition/MarketRebalancing it operates over a Cluster rather
// than a Context's per-market view, so it is driven directly by the
// ClusterDetectionService instead of through Registry.Detect.
type Combinatorial struct {
	logger *zap.Logger
}

func NewCombinatorial(logger *zap.Logger) *Combinatorial {
	return &Combinatorial{logger: logger}
}

func (c *Combinatorial) Name() types.StrategyKind { return types.StrategyCombinatorial }

// CombinatorialInput bundles everything one cluster evaluation needs.
type CombinatorialInput struct {
	Cluster       Cluster
	Theta         []float64
	Asks          []types.PriceLevel
	WarmStart     []float64
	MaxIterations int
	Tolerance     float64
	GapThreshold  float64
	TakerFee      types.Price
}

// DetectCluster runs one Frank-Wolfe projection and returns an
// opportunity when the gap clears GapThreshold, plus the final mu* to
// seed the next call regardless of whether an opportunity emitted.
func (c *Combinatorial) DetectCluster(in CombinatorialInput) (*types.Opportunity, []float64) {
	if len(in.Cluster.MarketIDs) < 2 {
		return nil, in.WarmStart
	}

	res, err := solver.FrankWolfe(in.Theta, in.Cluster.Constraints, in.WarmStart, in.MaxIterations, in.Tolerance)
	if err != nil {
		c.logger.Debug("combinatorial-solver-error", zap.String("cluster", string(in.Cluster.ID)), zap.Error(err))
		OpportunitiesRejectedTotal.WithLabelValues(string(types.StrategyCombinatorial), "solver_error").Inc()
		return nil, in.WarmStart
	}

	if res.Gap <= in.GapThreshold {
		OpportunitiesRejectedTotal.WithLabelValues(string(types.StrategyCombinatorial), "below_gap_threshold").Inc()
		return nil, res.Mu
	}

	opp := c.buildOpportunity(in, res)
	if opp != nil {
		NetProfitBPS.WithLabelValues(string(types.StrategyCombinatorial)).Observe(float64(opp.NetProfitBPS))
	}
	return opp, res.Mu
}

// buildOpportunity derives a trade basket from the sign of mu*-theta
// per outcome: a positive delta means the projection wants more of
// that outcome than the market is pricing, so buy it at the current
// ask; legs with a non-positive delta are dropped from the basket.
func (c *Combinatorial) buildOpportunity(in CombinatorialInput, res solver.Result) *types.Opportunity {
	legs := make([]types.OpportunityLeg, 0, len(in.Cluster.OutcomeRefs))
	var sizeUSD float64

	for i, ref := range in.Cluster.OutcomeRefs {
		delta := res.Mu[i] - in.Theta[i]
		if delta <= 0 {
			continue
		}
		if i >= len(in.Asks) {
			continue
		}
		ask := in.Asks[i]
		size, err := types.NewVolume(ask.Size.String())
		if err != nil {
			continue
		}
		legs = append(legs, types.OpportunityLeg{
			TokenID:    ref.TokenID,
			Outcome:    ref.Outcome,
			Side:       "buy",
			LimitPrice: ask.Price,
			Size:       size,
		})
		sizeUSD += delta
	}

	if len(legs) == 0 {
		OpportunitiesRejectedTotal.WithLabelValues(string(types.StrategyCombinatorial), "no_actionable_legs").Inc()
		return nil
	}

	size := legs[0].Size
	for _, l := range legs[1:] {
		size = size.Min(l.Size)
	}
	if size.IsZero() {
		return nil
	}

	edge := types.PriceFromFloat(res.Gap)
	opp := types.NewOpportunity(types.StrategyCombinatorial, in.Cluster.MarketIDs[0], "", "",
		in.Cluster.ID, legs, size, edge, in.TakerFee)
	return opp
}
