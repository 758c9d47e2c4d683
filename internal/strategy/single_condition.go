package strategy

import (
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// SingleCondition detects arbitrage in binary (two-outcome) markets:
// buy both outcomes when their combined ask price is below payout.
type SingleCondition struct {
	logger *zap.Logger
}

func NewSingleCondition(logger *zap.Logger) *SingleCondition {
	return &SingleCondition{logger: logger}
}

func (s *SingleCondition) Name() types.StrategyKind { return types.StrategySingleCondition }

func (s *SingleCondition) Detect(ctx *Context) []*types.Opportunity {
	var out []*types.Opportunity

	for _, market := range ctx.Markets {
		if len(market.Outcomes) != 2 {
			continue
		}

		books, ok := snapshotAll(ctx.Books, market.Outcomes)
		if !ok {
			continue
		}

		opp := detectBasket(ctx, types.StrategySingleCondition, market, books,
			ctx.Thresholds.SingleConditionMinEdge, ctx.Thresholds.SingleConditionMinProfit)
		if opp != nil {
			out = append(out, opp)
			NetProfitBPS.WithLabelValues(string(types.StrategySingleCondition)).Observe(float64(opp.NetProfitBPS))
		}
	}
	return out
}

// snapshotAll resolves every outcome's book snapshot, reporting ok=false
// if any is missing or marked stale (excluded from evaluation per the
// cache's stale-sequence contract).
func snapshotAll(books BookLookup, outcomes []OutcomeRef) ([]types.OrderBookSnapshot, bool) {
	out := make([]types.OrderBookSnapshot, 0, len(outcomes))
	for _, o := range outcomes {
		snap, ok := books.Snapshot(o.TokenID)
		if !ok || snap.Stale {
			return nil, false
		}
		out = append(out, snap)
	}
	return out, true
}

// detectBasket holds the edge/size/profit logic shared by the
// single-condition and market-rebalancing strategies: both reduce to
// "buy every outcome at its ask when the ask sum undercuts payout".
func detectBasket(
	ctx *Context,
	kind types.StrategyKind,
	market MarketView,
	books []types.OrderBookSnapshot,
	minEdge types.Price,
	minProfit types.Volume,
) *types.Opportunity {
	asks := make([]types.PriceLevel, len(books))
	for i, b := range books {
		ask, ok := b.BestAsk()
		if !ok {
			OpportunitiesRejectedTotal.WithLabelValues(string(kind), "no_ask").Inc()
			return nil
		}
		asks[i] = ask
	}

	sum := types.ZeroPrice
	for _, a := range asks {
		sum = sum.Add(a.Price)
	}

	payout, _ := types.NewPrice("1")
	if !sum.LessThan(payout) {
		OpportunitiesRejectedTotal.WithLabelValues(string(kind), "price_above_payout").Inc()
		return nil
	}
	edge := payout.Sub(sum)
	if edge.LessThan(minEdge) {
		OpportunitiesRejectedTotal.WithLabelValues(string(kind), "below_min_edge").Inc()
		return nil
	}

	size := asks[0].Size
	for _, a := range asks[1:] {
		size = size.Min(a.Size)
	}
	if size.GreaterThan(ctx.Thresholds.MaxPositionPerMarket) {
		size = ctx.Thresholds.MaxPositionPerMarket
	}
	if size.IsZero() {
		OpportunitiesRejectedTotal.WithLabelValues(string(kind), "zero_size").Inc()
		return nil
	}

	opp := types.NewOpportunity(kind, market.MarketID, market.MarketSlug, market.Question, "",
		legsFromAsks(market.Outcomes, asks, size), size, edge, ctx.TakerFee)

	if opp.NetProfit.LessThan(minProfit) {
		OpportunitiesRejectedTotal.WithLabelValues(string(kind), "below_min_profit").Inc()
		return nil
	}
	return opp
}

func legsFromAsks(outcomes []OutcomeRef, asks []types.PriceLevel, size types.Volume) []types.OpportunityLeg {
	legs := make([]types.OpportunityLeg, len(outcomes))
	for i, o := range outcomes {
		legs[i] = types.OpportunityLeg{
			TokenID:    o.TokenID,
			Outcome:    o.Outcome,
			Side:       "buy",
			LimitPrice: asks[i].Price,
			Size:       size,
		}
	}
	return legs
}
