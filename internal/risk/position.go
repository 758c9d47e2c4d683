package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
)

// Reservation is a held slice of exposure against a pending opportunity,
// returned by Reserve and passed back to Commit or Release.
type Reservation struct {
	OpportunityID string
	MarketID      types.MarketId
	Amount        float64
}

// PositionTracker exclusively owns open Positions and enforces the
// transactional reserve/commit/release contract so concurrent risk
// checks cannot oversell exposure: Reserve atomically claims capacity,
// Commit converts a reservation into an open Position once the
// Executor confirms fills, and Release returns unused capacity when an
// opportunity is rejected or fails entirely.
type PositionTracker struct {
	mu sync.Mutex

	perMarket    map[types.MarketId]float64 // reserved + open, by market
	aggregate    float64
	reservations map[string]Reservation // pending, not yet committed or released
	held         map[string]Reservation // committed into an open Position, still holding exposure
	positions    map[string]*types.Position
}

func NewPositionTracker() *PositionTracker {
	return &PositionTracker{
		perMarket:    make(map[types.MarketId]float64),
		reservations: make(map[string]Reservation),
		held:         make(map[string]Reservation),
		positions:    make(map[string]*types.Position),
	}
}

// Reserve claims `amount` of exposure against marketID for opportunityID,
// failing if either the per-market or aggregate cap would be exceeded.
func (t *PositionTracker) Reserve(opportunityID string, marketID types.MarketId, amount, maxPerMarket, maxAggregate float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.perMarket[marketID]+amount > maxPerMarket {
		return fmt.Errorf("reserve %s: per-market cap exceeded (%.2f + %.2f > %.2f)", marketID, t.perMarket[marketID], amount, maxPerMarket)
	}
	if t.aggregate+amount > maxAggregate {
		return fmt.Errorf("reserve %s: aggregate cap exceeded (%.2f + %.2f > %.2f)", marketID, t.aggregate, amount, maxAggregate)
	}

	t.perMarket[marketID] += amount
	t.aggregate += amount
	t.reservations[opportunityID] = Reservation{OpportunityID: opportunityID, MarketID: marketID, Amount: amount}
	OpenExposure.Set(t.aggregate)
	return nil
}

// Commit converts a reservation into an open Position once the
// Executor reports fills. The reserved exposure stays held against the
// position, tracked in `held` so Close can always find and release it
// regardless of the pending `reservations` entry already being gone.
// lockedProfit is the basket's guaranteed P&L at fill time, carried on
// the Position so a later settlement pass can Close it without needing
// to recompute anything from the legs.
func (t *PositionTracker) Commit(opportunityID string, legs []types.Trade, lockedProfit types.Price) *types.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos := &types.Position{
		OpportunityID: opportunityID,
		Legs:          legs,
		LockedProfit:  lockedProfit,
		Status:        types.PositionOpen,
		OpenedAt:      time.Now(),
	}
	if r, ok := t.reservations[opportunityID]; ok {
		delete(t.reservations, opportunityID)
		t.held[opportunityID] = r
		pos.MarketID = r.MarketID
	}
	t.positions[opportunityID] = pos
	return pos
}

// Release returns a reservation's exposure without opening a position,
// used when an opportunity is rejected or every leg fails to fill.
func (t *PositionTracker) Release(opportunityID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.reservations[opportunityID]
	if !ok {
		return
	}
	delete(t.reservations, opportunityID)
	t.perMarket[r.MarketID] -= r.Amount
	t.aggregate -= r.Amount
	if t.aggregate < 0 {
		t.aggregate = 0
	}
	OpenExposure.Set(t.aggregate)
}

// Close settles an open position, releasing its held exposure and
// recording the realized P&L.
func (t *PositionTracker) Close(opportunityID string, realizedPnL types.Price, reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pos, ok := t.positions[opportunityID]
	if !ok {
		return
	}
	pos.Status = types.PositionClosed
	pos.ClosedAt = time.Now()
	pos.CloseReason = reason
	pos.RealizedPnL = realizedPnL

	if r, ok := t.held[opportunityID]; ok {
		t.perMarket[r.MarketID] -= r.Amount
		t.aggregate -= r.Amount
		if t.aggregate < 0 {
			t.aggregate = 0
		}
		delete(t.held, opportunityID)
	}
	OpenExposure.Set(t.aggregate)
}

// ExposureFor reports the current reserved-plus-open exposure for a
// market, used by the per-market cap check.
func (t *PositionTracker) ExposureFor(marketID types.MarketId) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.perMarket[marketID]
}

// AggregateExposure reports total reserved-plus-open exposure across
// every market, used by the aggregate cap check.
func (t *PositionTracker) AggregateExposure() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.aggregate
}

// Open returns the currently open position for an opportunity, if any.
func (t *PositionTracker) Open(opportunityID string) (*types.Position, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pos, ok := t.positions[opportunityID]
	return pos, ok && pos.Status == types.PositionOpen
}

// OpenPositionsForMarket returns every open position tied to marketID,
// used by the settlement loop once a market leaves the active set.
func (t *PositionTracker) OpenPositionsForMarket(marketID types.MarketId) []*types.Position {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*types.Position
	for _, pos := range t.positions {
		if pos.Status == types.PositionOpen && pos.MarketID == marketID {
			out = append(out, pos)
		}
	}
	return out
}
