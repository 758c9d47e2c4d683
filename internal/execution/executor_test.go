package execution

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

type fakeTracker struct {
	committed []string
	released  []string
}

func (f *fakeTracker) Commit(opportunityID string, legs []types.Trade, lockedProfit types.Price) *types.Position {
	f.committed = append(f.committed, opportunityID)
	return &types.Position{OpportunityID: opportunityID, Legs: legs, LockedProfit: lockedProfit, Status: types.PositionOpen}
}

func (f *fakeTracker) Release(opportunityID string) {
	f.released = append(f.released, opportunityID)
}

type fakeMetadata struct {
	tick   types.Price
	minSz  types.Volume
	bid    types.Price
	bidSet bool
}

func (f *fakeMetadata) TickSize(types.TokenId) types.Price     { return f.tick }
func (f *fakeMetadata) MinOrderSize(types.TokenId) types.Volume { return f.minSz }
func (f *fakeMetadata) BestBid(types.TokenId) (types.Price, bool) { return f.bid, f.bidSet }

func testOpportunity(t *testing.T, netProfit string) *types.Opportunity {
	return types.NewOpportunity(types.StrategySingleCondition, "m1", "slug", "question", "",
		[]types.OpportunityLeg{
			{TokenID: "tok1", Outcome: "Yes", Side: "buy", LimitPrice: mustPrice2(t, "0.45"), Size: mustVolume2(t, "100")},
			{TokenID: "tok2", Outcome: "No", Side: "buy", LimitPrice: mustPrice2(t, "0.50"), Size: mustVolume2(t, "100")},
		},
		mustVolume2(t, "100"), mustPrice2(t, "0.05"), mustPrice2(t, "0.01"))
}

func TestExecutePaperCommitsPositionAndTracksProfit(t *testing.T) {
	tracker := &fakeTracker{}
	exec := New(&Config{
		Mode:   "paper",
		Logger: zap.NewNop(),
		Tracker: tracker,
	})

	opp := testOpportunity(t, "2.00")
	result := exec.executePaper(opp)

	if !result.Success {
		t.Fatalf("expected success, got error %v", result.Error)
	}
	if len(result.Fills) != 2 {
		t.Fatalf("expected 2 fills, got %d", len(result.Fills))
	}
	if len(tracker.committed) != 1 || tracker.committed[0] != opp.ID {
		t.Fatalf("expected opportunity committed, got %+v", tracker.committed)
	}
}

func TestExecuteLiveFailsWithoutOrderClient(t *testing.T) {
	exec := New(&Config{Mode: "live", Logger: zap.NewNop()})
	opp := testOpportunity(t, "2.00")

	result := exec.executeLive(opp)
	if result.Success {
		t.Fatal("expected failure without an order client configured")
	}
}

func TestAdjustPriceForAggressionCapsAtMax(t *testing.T) {
	adjusted := adjustPriceForAggression(mustPrice2(t, "0.99"), mustPrice2(t, "0.01"), 5)
	if adjusted.Float64() > 0.9999 {
		t.Fatalf("expected adjusted price capped at 0.9999, got %s", adjusted)
	}
}

func TestPartitionFillsSeparatesFilledFromUnfilled(t *testing.T) {
	statuses := []types.FillStatus{
		{OrderID: "1", FullyFilled: true},
		{OrderID: "2", FullyFilled: false},
	}
	filled, unfilled := partitionFills(statuses)
	if len(filled) != 1 || len(unfilled) != 1 {
		t.Fatalf("expected 1 filled and 1 unfilled, got %d/%d", len(filled), len(unfilled))
	}
}

func TestClassifyErrorBuckets(t *testing.T) {
	cases := map[string]string{
		"connection refused by peer": "network",
		"api error (status 500)":     "api",
		"missing token id":           "validation",
		"insufficient balance":       "funds",
		"totally unexpected":         "unknown",
	}
	for msg, want := range cases {
		got := classifyError(errorString(msg))
		if got != want {
			t.Errorf("classifyError(%q) = %q, want %q", msg, got, want)
		}
	}
}

type errorString string

func (e errorString) Error() string { return string(e) }

func TestRecoverPartialFillCancelsUnfilledAndReleases(t *testing.T) {
	client, err := NewOrderClient(testOrderClientConfig())
	if err != nil {
		t.Fatalf("NewOrderClient: %v", err)
	}
	tracker := &fakeTracker{}
	exec := New(&Config{
		Mode:           "live",
		Logger:         zap.NewNop(),
		OrderClient:    client,
		Tracker:        tracker,
		Metadata:       &fakeMetadata{tick: mustPrice2(t, "0.01"), minSz: mustVolume2(t, "1"), bid: mustPrice2(t, "0.44"), bidSet: true},
		RecoveryWindow: 50 * time.Millisecond,
	})
	exec.ctx = context.Background()

	opp := testOpportunity(t, "2.00")
	legs := []Leg{
		{TokenID: "tok1", Outcome: "Yes", Side: "BUY", Price: mustPrice2(t, "0.45"), TickSize: mustPrice2(t, "0.01"), MinSize: mustVolume2(t, "1")},
		{TokenID: "tok2", Outcome: "No", Side: "BUY", Price: mustPrice2(t, "0.50"), TickSize: mustPrice2(t, "0.01"), MinSize: mustVolume2(t, "1")},
	}
	statuses := []types.FillStatus{
		{OrderID: "order-1", TokenID: "tok1", Outcome: "Yes", FullyFilled: true, SizeFilled: mustVolume2(t, "100"), ActualPrice: mustPrice2(t, "0.45")},
		{OrderID: "order-2", TokenID: "tok2", Outcome: "No", FullyFilled: false},
	}

	exec.recoverPartialFill(opp, legs, statuses, []types.FillStatus{statuses[1]})

	if len(tracker.released) != 1 || tracker.released[0] != opp.ID {
		t.Fatalf("expected opportunity released after partial-fill recovery, got %+v", tracker.released)
	}
}
