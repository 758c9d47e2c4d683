// Package strategy implements the StrategyRegistry and its three
// concrete detectors: single-condition, market-rebalancing, and
// combinatorial.
package strategy

import (
	"github.com/polyarb/polyarb/internal/solver"
	"github.com/polyarb/polyarb/pkg/types"
)

// BookLookup resolves a token's current order book snapshot.
type BookLookup interface {
	Snapshot(tokenID types.TokenId) (types.OrderBookSnapshot, bool)
}

// ClusterLookup resolves a cluster and its current member markets.
type ClusterLookup interface {
	Cluster(id types.ClusterId) (Cluster, bool)
}

// Cluster is the subset of cluster state strategies need: the ordered
// list of outcome tokens and the linear constraints defining the
// marginal polytope, passed through to the combinatorial solver
// untouched.
type Cluster struct {
	ID          types.ClusterId
	MarketIDs   []types.MarketId
	OutcomeRefs []OutcomeRef
	Constraints []solver.Constraint
}

// OutcomeRef names one outcome token's place in a cluster's joint
// price vector.
type OutcomeRef struct {
	TokenID  types.TokenId
	MarketID types.MarketId
	Outcome  string
}

// Context is the read-only view a Strategy's Detect call receives. It
// must not be mutated by strategies; caches are written only by their
// owners.
type Context struct {
	Books       BookLookup
	Clusters    ClusterLookup
	Markets     []MarketView
	ClusterIDs  []types.ClusterId
	WarmStart   map[types.ClusterId][]float64
	Thresholds  Thresholds
	TakerFee    types.Price
}

// MarketView is the per-market input a single-market strategy needs:
// the market's outcome tokens in a stable order.
type MarketView struct {
	MarketID   types.MarketId
	MarketSlug string
	Question   string
	Outcomes   []OutcomeRef
}

// Thresholds carries every strategy's configured edge/profit/solver
// parameters, gathered into one struct so Context stays a single value.
type Thresholds struct {
	SingleConditionMinEdge   types.Price
	SingleConditionMinProfit types.Volume
	RebalancingMinEdge       types.Price
	RebalancingMinProfit     types.Volume
	MaxPositionPerMarket     types.Volume
	CombinatorialEnabled     bool
	CombinatorialMaxIters    int
	CombinatorialTolerance   float64
	CombinatorialGapThresh   float64
}

// Strategy detects opportunities from a read-only Context. Strategies
// must be pure with respect to ctx: no mutation of caches, no side
// effects beyond metrics/logging.
type Strategy interface {
	Name() types.StrategyKind
	Detect(ctx *Context) []*types.Opportunity
}
