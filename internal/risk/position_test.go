package risk

import (
	"testing"

	"github.com/polyarb/polyarb/pkg/types"
)

func TestReserveRejectsOverPerMarketCap(t *testing.T) {
	tr := NewPositionTracker()
	if err := tr.Reserve("opp1", "m1", 80, 100, 1000); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := tr.Reserve("opp2", "m1", 30, 100, 1000); err == nil {
		t.Fatalf("expected per-market cap rejection")
	}
}

func TestReserveRejectsOverAggregateCap(t *testing.T) {
	tr := NewPositionTracker()
	if err := tr.Reserve("opp1", "m1", 80, 1000, 100); err != nil {
		t.Fatalf("first reserve: %v", err)
	}
	if err := tr.Reserve("opp2", "m2", 30, 1000, 100); err == nil {
		t.Fatalf("expected aggregate cap rejection")
	}
}

func TestReleaseReturnsExposure(t *testing.T) {
	tr := NewPositionTracker()
	if err := tr.Reserve("opp1", "m1", 50, 100, 1000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	tr.Release("opp1")
	if got := tr.ExposureFor("m1"); got != 0 {
		t.Fatalf("expected exposure 0 after release, got %f", got)
	}
}

func TestCommitThenCloseReleasesExposure(t *testing.T) {
	tr := NewPositionTracker()
	if err := tr.Reserve("opp1", "m1", 50, 100, 1000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	pos := tr.Commit("opp1", []types.Trade{{TokenID: "t1", Side: "BUY"}}, types.PriceFromFloat(0.05))
	if pos.Status != types.PositionOpen {
		t.Fatalf("expected open position")
	}
	if got := tr.ExposureFor("m1"); got != 50 {
		t.Fatalf("expected exposure still held at 50, got %f", got)
	}
	tr.Close("opp1", types.ZeroPrice, "settled")
	if got := tr.ExposureFor("m1"); got != 0 {
		t.Fatalf("expected exposure released on close, got %f", got)
	}
}

func TestOpenPositionsForMarketTracksCommittedPositions(t *testing.T) {
	tr := NewPositionTracker()
	if err := tr.Reserve("opp1", "m1", 50, 100, 1000); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	pos := tr.Commit("opp1", []types.Trade{{TokenID: "t1", Side: "BUY"}}, types.PriceFromFloat(0.05))
	if pos.MarketID != "m1" {
		t.Fatalf("expected position market id m1, got %s", pos.MarketID)
	}

	open := tr.OpenPositionsForMarket("m1")
	if len(open) != 1 || open[0].OpportunityID != "opp1" {
		t.Fatalf("expected opp1 open for m1, got %+v", open)
	}

	tr.Close("opp1", pos.LockedProfit, "market-resolved")
	if open := tr.OpenPositionsForMarket("m1"); len(open) != 0 {
		t.Fatalf("expected no open positions after close, got %+v", open)
	}
}
