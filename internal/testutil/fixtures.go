package testutil

import (
	"fmt"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
)

// CreateTestMarket builds a binary (YES/NO) market fixture in the
// Gamma API's string-encoded outcome/token format, matching what
// Market.UnmarshalJSON expects to decode.
func CreateTestMarket(id, slug, question string) *types.Market {
	return CreateMultiOutcomeMarket(id, slug, question, []string{"Yes", "No"})
}

// CreateMultiOutcomeMarket builds a market with an arbitrary outcome
// set, for exercising 3+-outcome detection paths.
func CreateMultiOutcomeMarket(id, slug, question string, outcomes []string) *types.Market {
	outcomesJSON := "["
	tokensJSON := "["
	tokens := make([]types.Token, 0, len(outcomes))
	for i, outcome := range outcomes {
		if i > 0 {
			outcomesJSON += ","
			tokensJSON += ","
		}
		tokenID := fmt.Sprintf("%s-tok-%d", id, i)
		outcomesJSON += fmt.Sprintf("%q", outcome)
		tokensJSON += fmt.Sprintf("%q", tokenID)
		tokens = append(tokens, types.Token{TokenID: types.TokenId(tokenID), Outcome: outcome})
	}
	outcomesJSON += "]"
	tokensJSON += "]"

	return &types.Market{
		ID:          types.MarketId(id),
		Slug:        slug,
		Question:    question,
		Closed:      false,
		Active:      true,
		Outcomes:    outcomesJSON,
		ClobTokens:  tokensJSON,
		Tokens:      tokens,
		CreatedAt:   time.Now(),
		EndDate:     time.Now().Add(30 * 24 * time.Hour),
		Description: "test market: " + question,
	}
}

// CreateMarketsResponse wraps markets into a paginated Gamma API
// response fixture.
func CreateMarketsResponse(markets ...*types.Market) *types.MarketsResponse {
	data := make([]types.Market, len(markets))
	for i, m := range markets {
		data[i] = *m
	}
	return &types.MarketsResponse{
		Data:   data,
		Count:  len(markets),
		Limit:  50,
		Offset: 0,
	}
}

// CreateOrderBookSnapshot builds a book with a single bid and ask
// level, the minimum shape the single-condition and rebalancing
// strategies need to evaluate a market.
func CreateOrderBookSnapshot(tokenID types.TokenId, marketID types.MarketId, bidPrice, bidSize, askPrice, askSize string) types.OrderBookSnapshot {
	bid, err := types.NewPrice(bidPrice)
	if err != nil {
		panic(err)
	}
	ask, err := types.NewPrice(askPrice)
	if err != nil {
		panic(err)
	}
	bidSz, err := types.NewVolume(bidSize)
	if err != nil {
		panic(err)
	}
	askSz, err := types.NewVolume(askSize)
	if err != nil {
		panic(err)
	}

	return types.OrderBookSnapshot{
		TokenID:     tokenID,
		MarketID:    marketID,
		Bids:        []types.PriceLevel{{Price: bid, Size: bidSz}},
		Asks:        []types.PriceLevel{{Price: ask, Size: askSz}},
		Sequence:    1,
		LastUpdated: time.Now(),
	}
}

// CreateSnapshotMessage wraps an OrderBookSnapshot into the
// StreamMessage shape a MarketDataStream delivers on first subscribe.
func CreateSnapshotMessage(snap types.OrderBookSnapshot) *types.StreamMessage {
	return &types.StreamMessage{
		Kind:      types.StreamSnapshot,
		TokenID:   snap.TokenID,
		MarketID:  snap.MarketID,
		Sequence:  snap.Sequence,
		Timestamp: snap.LastUpdated,
		Bids:      snap.Bids,
		Asks:      snap.Asks,
	}
}
