package app

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/polyarb/polyarb/internal/risk"
	"github.com/polyarb/polyarb/pkg/types"
)

func TestSettleMarketClosesOpenPositionsAndReleasesExposure(t *testing.T) {
	tracker := risk.NewPositionTracker()
	a := &App{logger: zaptest.NewLogger(t), positionTracker: tracker}

	if err := tracker.Reserve("opp1", "m1", 50, 100, 1000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	tracker.Commit("opp1", []types.Trade{{TokenID: "tok-a", Side: "BUY"}}, types.PriceFromFloat(0.05))

	if got := tracker.ExposureFor("m1"); got != 50 {
		t.Fatalf("expected exposure held at 50 before settlement, got %f", got)
	}

	a.settleMarket(&types.MarketSubscription{MarketID: "m1", MarketSlug: "will-x-happen"})

	if got := tracker.ExposureFor("m1"); got != 0 {
		t.Fatalf("expected exposure released after settlement, got %f", got)
	}
	if open := tracker.OpenPositionsForMarket("m1"); len(open) != 0 {
		t.Fatalf("expected no open positions after settlement, got %+v", open)
	}
}

func TestSettleMarketLeavesOtherMarketsUntouched(t *testing.T) {
	tracker := risk.NewPositionTracker()
	a := &App{logger: zaptest.NewLogger(t), positionTracker: tracker}

	if err := tracker.Reserve("opp1", "m1", 50, 100, 1000); err != nil {
		t.Fatalf("reserve m1: %v", err)
	}
	tracker.Commit("opp1", []types.Trade{{TokenID: "tok-a", Side: "BUY"}}, types.PriceFromFloat(0.05))

	if err := tracker.Reserve("opp2", "m2", 30, 100, 1000); err != nil {
		t.Fatalf("reserve m2: %v", err)
	}
	tracker.Commit("opp2", []types.Trade{{TokenID: "tok-b", Side: "BUY"}}, types.PriceFromFloat(0.02))

	a.settleMarket(&types.MarketSubscription{MarketID: "m1", MarketSlug: "will-x-happen"})

	if got := tracker.ExposureFor("m2"); got != 30 {
		t.Fatalf("expected m2 exposure untouched at 30, got %f", got)
	}
	if open := tracker.OpenPositionsForMarket("m2"); len(open) != 1 {
		t.Fatalf("expected m2 position to remain open, got %+v", open)
	}
}
