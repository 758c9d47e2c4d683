package types

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StrategyKind names which detector produced an Opportunity.
type StrategyKind string

const (
	StrategySingleCondition  StrategyKind = "single_condition"
	StrategyMarketRebalancing StrategyKind = "market_rebalancing"
	StrategyCombinatorial    StrategyKind = "combinatorial"
)

// OpportunityLeg is one side of a multi-leg trade proposal: buy Size of
// TokenID at a price no worse than LimitPrice.
type OpportunityLeg struct {
	TokenID    TokenId
	Outcome    string
	Side       string
	LimitPrice Price
	Size       Volume
}

// Opportunity is a strategy-emitted trade proposal awaiting risk
// gating. It is persisted regardless of the outcome of that gating.
type Opportunity struct {
	ID             string
	Strategy       StrategyKind
	MarketID       MarketId
	MarketSlug     string
	MarketQuestion string
	ClusterID      ClusterId
	Legs           []OpportunityLeg
	Edge           Price
	ExpectedProfit Volume
	EstimatedFees  Volume
	NetProfit      Volume
	NetProfitBPS   int
	DetectedAt     time.Time
}

// NewOpportunity computes fee-adjusted profit fields from the legs'
// edge and size, and assigns a fresh opportunity id.
func NewOpportunity(
	strategy StrategyKind,
	marketID MarketId,
	marketSlug, marketQuestion string,
	clusterID ClusterId,
	legs []OpportunityLeg,
	size Volume,
	edge Price,
	takerFee Price,
) *Opportunity {
	grossProfitDec := edge.Mul(size)
	feePerLegDec := takerFee.Mul(size)
	totalFeesDec := feePerLegDec.Mul(decimal.NewFromInt(int64(len(legs))))
	netProfitDec := grossProfitDec.Sub(totalFeesDec)

	grossProfit, _ := VolumeFromDecimal(grossProfitDec)
	totalFees, _ := VolumeFromDecimal(totalFeesDec)
	netProfit, err := VolumeFromDecimal(netProfitDec)
	if err != nil {
		// A negative net profit is a real (rejectable) outcome, not a
		// malformed value; keep it as a signed zero-floor Volume only
		// for display, the sign lives in NetProfitBPS instead.
		netProfit = ZeroVolume
	}

	netBPS := 0
	if !size.IsZero() {
		bps := netProfitDec.Div(size.Decimal()).Mul(decimal.NewFromInt(10000))
		netBPS = int(bps.IntPart())
	}

	return &Opportunity{
		ID:             uuid.New().String(),
		Strategy:       strategy,
		MarketID:       marketID,
		MarketSlug:     marketSlug,
		MarketQuestion: marketQuestion,
		ClusterID:      clusterID,
		Legs:           legs,
		Edge:           edge,
		ExpectedProfit: grossProfit,
		EstimatedFees:  totalFees,
		NetProfit:      netProfit,
		NetProfitBPS:   netBPS,
		DetectedAt:     time.Now(),
	}
}

func (o *Opportunity) String() string {
	return fmt.Sprintf("Opportunity[%s] strategy=%s market=%s legs=%d edge=%s net_profit=%s bps=%d",
		o.ID[:8], o.Strategy, o.MarketSlug, len(o.Legs), o.Edge, o.NetProfit, o.NetProfitBPS)
}
