package types

import "time"

// StreamMessageKind discriminates the payloads a MarketDataStream can
// deliver for a subscribed token.
type StreamMessageKind int

const (
	StreamSnapshot StreamMessageKind = iota // full book replace
	StreamDelta                             // incremental level update
	StreamHeartbeat
	StreamError
)

func (k StreamMessageKind) String() string {
	switch k {
	case StreamSnapshot:
		return "snapshot"
	case StreamDelta:
		return "delta"
	case StreamHeartbeat:
		return "heartbeat"
	case StreamError:
		return "error"
	default:
		return "unknown"
	}
}

// PriceLevel is a single (price, cumulative size) pair. Equal-price
// levels are aggregated before they reach this type; price-time
// priority within a level is the exchange's concern.
type PriceLevel struct {
	Price Price
	Size  Volume
}

// StreamMessage is one event delivered by a MarketDataStream for a
// single token. Sequence is assigned by the transport and must be
// strictly increasing per token; a gap or regression is a StaleSequence
// condition for the cache.
type StreamMessage struct {
	Kind      StreamMessageKind
	TokenID   TokenId
	MarketID  MarketId
	Sequence  int64
	Timestamp time.Time
	Bids      []PriceLevel // full snapshot (Kind==StreamSnapshot) or delta (Kind==StreamDelta)
	Asks      []PriceLevel
	Err       error // populated when Kind==StreamError
}

// OrderBookSnapshot is an immutable, copy-on-read view of a token's
// order book at a point in time.
type OrderBookSnapshot struct {
	TokenID     TokenId
	MarketID    MarketId
	Bids        []PriceLevel // descending by price
	Asks        []PriceLevel // ascending by price
	Sequence    int64
	LastUpdated time.Time
	Stale       bool // true while awaiting resync after a sequence gap
}

// BestBid returns the highest bid level, or false if the book side is
// empty.
func (s *OrderBookSnapshot) BestBid() (PriceLevel, bool) {
	if len(s.Bids) == 0 {
		return PriceLevel{}, false
	}
	return s.Bids[0], true
}

// BestAsk returns the lowest ask level, or false if the book side is
// empty.
func (s *OrderBookSnapshot) BestAsk() (PriceLevel, bool) {
	if len(s.Asks) == 0 {
		return PriceLevel{}, false
	}
	return s.Asks[0], true
}

// DepthAtOrBetter sums the size available at prices at-or-better than
// limit on the given side ("bid" or "ask").
func (s *OrderBookSnapshot) DepthAtOrBetter(side string, limit Price) Volume {
	total := ZeroVolume
	levels := s.Asks
	better := func(p Price) bool { return p.LessThanOrEqual(limit) }
	if side == "bid" {
		levels = s.Bids
		better = func(p Price) bool { return !p.LessThan(limit) }
	}
	for _, lvl := range levels {
		if better(lvl.Price) {
			total = total.Add(lvl.Size)
		}
	}
	return total
}
