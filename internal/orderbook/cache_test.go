package orderbook

import (
	"testing"
	"time"

	"github.com/polyarb/polyarb/internal/errs"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

func mustPrice(t *testing.T, s string) types.Price {
	t.Helper()
	p, err := types.NewPrice(s)
	if err != nil {
		t.Fatalf("price %q: %v", s, err)
	}
	return p
}

func mustVolume(t *testing.T, s string) types.Volume {
	t.Helper()
	v, err := types.NewVolume(s)
	if err != nil {
		t.Fatalf("volume %q: %v", s, err)
	}
	return v
}

func TestCacheApplySnapshotThenDelta(t *testing.T) {
	c := New(zap.NewNop())
	tok := types.TokenId("tok-1")

	snap := &types.StreamMessage{
		Kind:     types.StreamSnapshot,
		TokenID:  tok,
		MarketID: types.MarketId("mkt-1"),
		Sequence: 1,
		Bids:     []types.PriceLevel{{Price: mustPrice(t, "0.50"), Size: mustVolume(t, "100")}},
		Asks:     []types.PriceLevel{{Price: mustPrice(t, "0.52"), Size: mustVolume(t, "100")}},
	}
	if err := c.Apply(snap); err != nil {
		t.Fatalf("apply snapshot: %v", err)
	}

	s, ok := c.Snapshot(tok)
	if !ok {
		t.Fatal("expected snapshot to exist")
	}
	bb, _ := s.BestBid()
	if bb.Price.String() != "0.500000" {
		t.Errorf("expected best bid 0.5, got %s", bb.Price)
	}

	delta := &types.StreamMessage{
		Kind:     types.StreamDelta,
		TokenID:  tok,
		MarketID: types.MarketId("mkt-1"),
		Sequence: 2,
		Bids:     []types.PriceLevel{{Price: mustPrice(t, "0.51"), Size: mustVolume(t, "120")}},
	}
	if err := c.Apply(delta); err != nil {
		t.Fatalf("apply delta: %v", err)
	}

	s, _ = c.Snapshot(tok)
	bb, _ = s.BestBid()
	if bb.Price.String() != "0.510000" {
		t.Errorf("expected updated best bid 0.51, got %s", bb.Price)
	}
	ba, _ := s.BestAsk()
	if ba.Price.String() != "0.520000" {
		t.Errorf("expected ask unchanged at 0.52, got %s", ba.Price)
	}
}

func TestCacheStaleSequence(t *testing.T) {
	c := New(zap.NewNop())
	tok := types.TokenId("tok-1")

	c.Apply(&types.StreamMessage{Kind: types.StreamSnapshot, TokenID: tok, Sequence: 5})

	err := c.Apply(&types.StreamMessage{Kind: types.StreamDelta, TokenID: tok, Sequence: 5})
	if err == nil {
		t.Fatal("expected StaleSequence for regressed sequence")
	}
	var staleErr *errs.StaleSequence
	if _, ok := err.(*errs.StaleSequence); !ok {
		t.Errorf("expected *errs.StaleSequence, got %T", err)
	}
	_ = staleErr

	err = c.Apply(&types.StreamMessage{Kind: types.StreamDelta, TokenID: tok, Sequence: 8})
	if err == nil {
		t.Fatal("expected StaleSequence for sequence gap")
	}

	s, _ := c.Snapshot(tok)
	if !s.Stale {
		t.Error("expected book to be marked stale after gap")
	}
}

func TestCacheZeroSizeRemovesLevel(t *testing.T) {
	c := New(zap.NewNop())
	tok := types.TokenId("tok-1")

	c.Apply(&types.StreamMessage{
		Kind: types.StreamSnapshot, TokenID: tok, Sequence: 1,
		Bids: []types.PriceLevel{{Price: mustPrice(t, "0.50"), Size: mustVolume(t, "100")}},
	})
	c.Apply(&types.StreamMessage{
		Kind: types.StreamDelta, TokenID: tok, Sequence: 2,
		Bids: []types.PriceLevel{{Price: mustPrice(t, "0.50"), Size: mustVolume(t, "0")}},
	})

	s, _ := c.Snapshot(tok)
	if _, ok := s.BestBid(); ok {
		t.Error("expected bid side to be empty after zero-size delta")
	}
}

func TestDrainDirtyIdempotent(t *testing.T) {
	c := New(zap.NewNop())
	tok := types.TokenId("tok-1")
	c.Apply(&types.StreamMessage{Kind: types.StreamSnapshot, TokenID: tok, Sequence: 1})

	dirty := c.DrainDirty()
	if len(dirty) != 1 || dirty[0] != tok {
		t.Fatalf("expected [%s], got %v", tok, dirty)
	}

	if again := c.DrainDirty(); again != nil {
		t.Errorf("expected nil on second drain, got %v", again)
	}
}

func TestSnapshotMissingToken(t *testing.T) {
	c := New(zap.NewNop())
	if _, ok := c.Snapshot(types.TokenId("missing")); ok {
		t.Error("expected missing token to report ok=false")
	}
}

func TestBestBidBelowBestAsk(t *testing.T) {
	c := New(zap.NewNop())
	tok := types.TokenId("tok-1")
	c.Apply(&types.StreamMessage{
		Kind: types.StreamSnapshot, TokenID: tok, Sequence: 1, Timestamp: time.Now(),
		Bids: []types.PriceLevel{{Price: mustPrice(t, "0.48"), Size: mustVolume(t, "10")}},
		Asks: []types.PriceLevel{{Price: mustPrice(t, "0.50"), Size: mustVolume(t, "10")}},
	})
	s, _ := c.Snapshot(tok)
	bb, _ := s.BestBid()
	ba, _ := s.BestAsk()
	if !bb.Price.LessThan(ba.Price) {
		t.Errorf("expected best bid < best ask, got %s >= %s", bb.Price, ba.Price)
	}
}
