package strategy

import (
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// MarketRebalancing detects arbitrage in markets with three or more
// mutually exclusive outcomes: buy the full basket when the ask sum
// undercuts payout. Binding size is the thinnest outcome's depth.
type MarketRebalancing struct {
	logger *zap.Logger
}

func NewMarketRebalancing(logger *zap.Logger) *MarketRebalancing {
	return &MarketRebalancing{logger: logger}
}

func (r *MarketRebalancing) Name() types.StrategyKind { return types.StrategyMarketRebalancing }

func (r *MarketRebalancing) Detect(ctx *Context) []*types.Opportunity {
	var out []*types.Opportunity

	for _, market := range ctx.Markets {
		if len(market.Outcomes) < 3 {
			continue
		}

		books, ok := snapshotAll(ctx.Books, market.Outcomes)
		if !ok {
			continue
		}

		opp := detectBasket(ctx, types.StrategyMarketRebalancing, market, books,
			ctx.Thresholds.RebalancingMinEdge, ctx.Thresholds.RebalancingMinProfit)
		if opp != nil {
			out = append(out, opp)
			NetProfitBPS.WithLabelValues(string(types.StrategyMarketRebalancing)).Observe(float64(opp.NetProfitBPS))
		}
	}
	return out
}
