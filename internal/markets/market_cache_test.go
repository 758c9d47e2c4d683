package markets

import (
	"testing"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/types"
)

func TestCacheBestBidReadsLiveOrderBook(t *testing.T) {
	books := orderbook.New(zap.NewNop())
	tok := types.TokenId("tok-1")

	err := books.Apply(&types.StreamMessage{
		Kind:     types.StreamSnapshot,
		TokenID:  tok,
		MarketID: types.MarketId("mkt-1"),
		Sequence: 1,
		Bids:     []types.PriceLevel{{Price: mustPrice(t, "0.45"), Size: mustVolume(t, "100")}},
		Asks:     []types.PriceLevel{{Price: mustPrice(t, "0.47"), Size: mustVolume(t, "100")}},
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	mockClient := NewMetadataClientWithConfig(MetadataClientConfig{BaseURL: "http://mock-server"})
	c := NewCache(NewCachedMetadataClient(mockClient, nil), books)

	bid, ok := c.BestBid(tok)
	if !ok {
		t.Fatal("expected a best bid")
	}
	if bid.Float64() != 0.45 {
		t.Errorf("expected best bid 0.45, got %.4f", bid.Float64())
	}
}

func TestCacheBestBidMissingTokenReturnsFalse(t *testing.T) {
	books := orderbook.New(zap.NewNop())
	mockClient := NewMetadataClientWithConfig(MetadataClientConfig{BaseURL: "http://mock-server"})
	c := NewCache(NewCachedMetadataClient(mockClient, nil), books)

	if _, ok := c.BestBid(types.TokenId("unknown")); ok {
		t.Fatal("expected no bid for an untracked token")
	}
}
