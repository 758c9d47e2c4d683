package risk

import (
	"context"
	"testing"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

type fakeWallet struct{ balance float64 }

func (f *fakeWallet) GetBalances(ctx context.Context) (float64, error) { return f.balance, nil }

type fakeBooks struct {
	snaps map[types.TokenId]types.OrderBookSnapshot
}

func (f *fakeBooks) Snapshot(tokenID types.TokenId) (types.OrderBookSnapshot, bool) {
	s, ok := f.snaps[tokenID]
	return s, ok
}

func mustPrice(t *testing.T, s string) types.Price {
	t.Helper()
	p, err := types.NewPrice(s)
	if err != nil {
		t.Fatalf("NewPrice(%q): %v", s, err)
	}
	return p
}

func mustVolume(t *testing.T, s string) types.Volume {
	t.Helper()
	v, err := types.NewVolume(s)
	if err != nil {
		t.Fatalf("NewVolume(%q): %v", s, err)
	}
	return v
}

func book(t *testing.T, askPrice, askSize string) types.OrderBookSnapshot {
	return types.OrderBookSnapshot{
		TokenID: "tok1",
		Asks:    []types.PriceLevel{{Price: mustPrice(t, askPrice), Size: mustVolume(t, askSize)}},
		Bids:    []types.PriceLevel{{Price: mustPrice(t, "0.40"), Size: mustVolume(t, askSize)}},
	}
}

func newManager(t *testing.T, balance float64, thresholds Thresholds) (*Manager, *PositionTracker) {
	ks := NewKillSwitch(&fakeWallet{balance: balance}, KillSwitchConfig{
		CheckInterval: time.Second, TradeMultiplier: 3, MinAbsolute: 10, HysteresisRatio: 1.5,
	}, zap.NewNop(), nil)
	tracker := NewPositionTracker()
	books := &fakeBooks{snaps: map[types.TokenId]types.OrderBookSnapshot{
		"tok1": book(t, "0.45", "1000"),
	}}
	return NewManager(ks, tracker, books, thresholds, zap.NewNop()), tracker
}

func opp(t *testing.T, netProfit string) *types.Opportunity {
	o := types.NewOpportunity(types.StrategySingleCondition, "m1", "slug", "question", "",
		[]types.OpportunityLeg{{TokenID: "tok1", Side: "buy", LimitPrice: mustPrice(t, "0.45"), Size: mustVolume(t, "100")}},
		mustVolume(t, "100"), mustPrice(t, "0.02"), mustPrice(t, "0.01"))
	o.NetProfit = mustVolume(t, netProfit)
	return o
}

func TestGateApprovesWithinAllThresholds(t *testing.T) {
	m, _ := newManager(t, 1000, Thresholds{
		MinProfitThreshold: mustVolume(t, "0.50"), MaxPositionPerMarket: 1000,
		MaxTotalExposure: 5000, MaxSlippage: mustPrice(t, "0.05"), ExecutionTimeout: time.Minute,
	})
	d := m.Gate(opp(t, "2.00"))
	if !d.Approved {
		t.Fatalf("expected approval, got rejection reason %q", d.Reason)
	}
}

func TestGateRejectsBelowMinProfit(t *testing.T) {
	m, _ := newManager(t, 1000, Thresholds{
		MinProfitThreshold: mustVolume(t, "5.00"), MaxPositionPerMarket: 1000,
		MaxTotalExposure: 5000, MaxSlippage: mustPrice(t, "0.05"), ExecutionTimeout: time.Minute,
	})
	d := m.Gate(opp(t, "0.30"))
	if d.Approved || d.Reason != "below_min_profit" {
		t.Fatalf("expected below_min_profit rejection, got %+v", d)
	}
}

func TestGateRejectsWhenKillSwitchTripped(t *testing.T) {
	m, _ := newManager(t, 1000, Thresholds{
		MinProfitThreshold: mustVolume(t, "0.50"), MaxPositionPerMarket: 1000,
		MaxTotalExposure: 5000, MaxSlippage: mustPrice(t, "0.05"), ExecutionTimeout: time.Minute,
	})
	m.killSwitch.enabled.Store(false)
	d := m.Gate(opp(t, "2.00"))
	if d.Approved || d.Reason != "kill_switch_tripped" {
		t.Fatalf("expected kill_switch_tripped rejection, got %+v", d)
	}
}

func TestGateRejectsExpiredOpportunity(t *testing.T) {
	m, _ := newManager(t, 1000, Thresholds{
		MinProfitThreshold: mustVolume(t, "0.50"), MaxPositionPerMarket: 1000,
		MaxTotalExposure: 5000, MaxSlippage: mustPrice(t, "0.05"), ExecutionTimeout: time.Millisecond,
	})
	o := opp(t, "2.00")
	o.DetectedAt = time.Now().Add(-time.Second)
	d := m.Gate(o)
	if d.Approved || d.Reason != "expired" {
		t.Fatalf("expected expired rejection, got %+v", d)
	}
}

func TestGateRejectsPerMarketCapWithoutReserving(t *testing.T) {
	m, tracker := newManager(t, 1000, Thresholds{
		MinProfitThreshold: mustVolume(t, "0.50"), MaxPositionPerMarket: 10,
		MaxTotalExposure: 5000, MaxSlippage: mustPrice(t, "0.05"), ExecutionTimeout: time.Minute,
	})
	d := m.Gate(opp(t, "2.00"))
	if d.Approved || d.Reason != "per_market_cap_exceeded" {
		t.Fatalf("expected per_market_cap_exceeded, got %+v", d)
	}
	if tracker.ExposureFor("m1") != 0 {
		t.Fatalf("rejected opportunity must not reserve exposure")
	}
}
