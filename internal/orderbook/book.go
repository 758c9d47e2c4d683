package orderbook

import (
	"sort"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
)

// book is the mutable per-token state the cache owns exclusively.
// Bids are kept sorted descending by price, asks ascending, so
// BestBid/BestAsk and snapshot() are O(1)/O(n) respectively without a
// re-sort on read.
type book struct {
	marketID    types.MarketId
	bids        []types.PriceLevel
	asks        []types.PriceLevel
	sequence    int64
	lastUpdated time.Time
	stale       bool
}

func newBook(marketID types.MarketId) *book {
	return &book{marketID: marketID}
}

// replace installs a full snapshot, resetting any stale flag — a fresh
// snapshot is always authoritative regardless of prior sequence state.
func (b *book) replace(bids, asks []types.PriceLevel, seq int64, at time.Time) {
	b.bids = sortLevels(bids, true)
	b.asks = sortLevels(asks, false)
	b.sequence = seq
	b.lastUpdated = at
	b.stale = false
}

// applyDelta merges incremental level updates into the existing book.
// A level with zero size removes that price from the book; any other
// size replaces the level's cumulative size at that price.
func (b *book) applyDelta(bids, asks []types.PriceLevel, seq int64, at time.Time) {
	b.bids = mergeLevels(b.bids, bids, true)
	b.asks = mergeLevels(b.asks, asks, false)
	b.sequence = seq
	b.lastUpdated = at
}

func (b *book) snapshot(tokenID types.TokenId) types.OrderBookSnapshot {
	bidsCopy := make([]types.PriceLevel, len(b.bids))
	copy(bidsCopy, b.bids)
	asksCopy := make([]types.PriceLevel, len(b.asks))
	copy(asksCopy, b.asks)

	return types.OrderBookSnapshot{
		TokenID:     tokenID,
		MarketID:    b.marketID,
		Bids:        bidsCopy,
		Asks:        asksCopy,
		Sequence:    b.sequence,
		LastUpdated: b.lastUpdated,
		Stale:       b.stale,
	}
}

func sortLevels(levels []types.PriceLevel, descending bool) []types.PriceLevel {
	out := make([]types.PriceLevel, 0, len(levels))
	for _, lvl := range levels {
		if !lvl.Size.IsZero() {
			out = append(out, lvl)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// mergeLevels applies a set of (price, new size) deltas to an existing
// sorted level slice, dropping zero-size levels and re-sorting.
func mergeLevels(existing []types.PriceLevel, deltas []types.PriceLevel, descending bool) []types.PriceLevel {
	if len(deltas) == 0 {
		return existing
	}

	byPrice := make(map[string]types.PriceLevel, len(existing)+len(deltas))
	for _, lvl := range existing {
		byPrice[lvl.Price.String()] = lvl
	}
	for _, lvl := range deltas {
		if lvl.Size.IsZero() {
			delete(byPrice, lvl.Price.String())
			continue
		}
		byPrice[lvl.Price.String()] = lvl
	}

	out := make([]types.PriceLevel, 0, len(byPrice))
	for _, lvl := range byPrice {
		out = append(out, lvl)
	}
	sort.Slice(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out
}

// crossed reports whether the book violates best-bid < best-ask.
func (b *book) crossed() bool {
	if len(b.bids) == 0 || len(b.asks) == 0 {
		return false
	}
	return !b.bids[0].Price.LessThan(b.asks[0].Price)
}
