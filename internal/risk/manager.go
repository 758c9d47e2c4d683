package risk

import (
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// BookLookup resolves a token's current order book snapshot, used by
// the slippage re-check.
type BookLookup interface {
	Snapshot(tokenID types.TokenId) (types.OrderBookSnapshot, bool)
}

// Thresholds configures the ordered gate.
type Thresholds struct {
	MinProfitThreshold   types.Volume
	MaxPositionPerMarket float64
	MaxTotalExposure     float64
	MaxSlippage          types.Price
	ExecutionTimeout     time.Duration
	DryRun               bool
}

// Decision is the outcome of gating a single opportunity.
type Decision struct {
	Approved bool
	Reason   string // populated when !Approved
	Reserved *Reservation
}

// Manager gates each opportunity through the spec's five ordered
// checks before it may reach the Executor. Grounded on the teacher's
// BalanceCircuitBreaker for the kill-switch step (see killswitch.go),
// generalized here into a composable multi-check gate.
type Manager struct {
	killSwitch *KillSwitch
	tracker    *PositionTracker
	books      BookLookup
	thresholds Thresholds
	logger     *zap.Logger
}

func NewManager(killSwitch *KillSwitch, tracker *PositionTracker, books BookLookup, thresholds Thresholds, logger *zap.Logger) *Manager {
	return &Manager{killSwitch: killSwitch, tracker: tracker, books: books, thresholds: thresholds, logger: logger}
}

// Gate runs the five ordered checks and, on success, atomically
// reserves exposure in the PositionTracker. dry_run still performs
// every check and records the outcome; the caller (the orchestrator)
// is responsible for skipping the Executor call when DryRun is set.
func (m *Manager) Gate(opp *types.Opportunity) Decision {
	start := time.Now()
	defer func() { GateDuration.Observe(time.Since(start).Seconds()) }()

	if time.Since(opp.DetectedAt) > m.thresholds.ExecutionTimeout {
		return m.reject(opp, "expired")
	}

	if !m.killSwitch.IsEnabled() {
		return m.reject(opp, "kill_switch_tripped")
	}

	if opp.NetProfit.LessThan(m.thresholds.MinProfitThreshold) {
		return m.reject(opp, "below_min_profit")
	}

	sizeUSD := legsNotional(opp)
	if m.tracker.ExposureFor(opp.MarketID)+sizeUSD > m.thresholds.MaxPositionPerMarket {
		return m.reject(opp, "per_market_cap_exceeded")
	}
	if m.tracker.AggregateExposure()+sizeUSD > m.thresholds.MaxTotalExposure {
		return m.reject(opp, "aggregate_cap_exceeded")
	}

	if !m.withinSlippage(opp) {
		return m.reject(opp, "slippage_exceeded")
	}

	if err := m.tracker.Reserve(opp.ID, opp.MarketID, sizeUSD, m.thresholds.MaxPositionPerMarket, m.thresholds.MaxTotalExposure); err != nil {
		return m.reject(opp, "reserve_failed")
	}

	OpportunitiesGatedTotal.WithLabelValues("approved").Inc()
	if m.thresholds.DryRun {
		m.logger.Info("risk-approved-dry-run", zap.String("opportunity", opp.ID))
	}
	return Decision{Approved: true, Reserved: &Reservation{OpportunityID: opp.ID, MarketID: opp.MarketID, Amount: sizeUSD}}
}

func (m *Manager) reject(opp *types.Opportunity, reason string) Decision {
	OpportunitiesGatedTotal.WithLabelValues("rejected").Inc()
	RejectionsTotal.WithLabelValues(reason).Inc()
	m.logger.Debug("risk-rejected", zap.String("opportunity", opp.ID), zap.String("reason", reason))
	return Decision{Approved: false, Reason: reason}
}

// withinSlippage re-checks each leg's limit price against the book's
// current best quote on the same side, rejecting stale opportunities
// whose prices have since moved beyond max_slippage.
func (m *Manager) withinSlippage(opp *types.Opportunity) bool {
	for _, leg := range opp.Legs {
		snap, ok := m.books.Snapshot(leg.TokenID)
		if !ok || snap.Stale {
			return false
		}
		level, ok := snap.BestAsk()
		if leg.Side == "sell" {
			level, ok = snap.BestBid()
		}
		if !ok {
			return false
		}
		diff := leg.LimitPrice.Sub(level.Price)
		if diff.LessThan(types.ZeroPrice) {
			diff = level.Price.Sub(leg.LimitPrice)
		}
		if diff.GreaterThan(m.thresholds.MaxSlippage) {
			return false
		}
	}
	return true
}

func legsNotional(opp *types.Opportunity) float64 {
	total := 0.0
	for _, leg := range opp.Legs {
		total += leg.LimitPrice.Mul(leg.Size).InexactFloat64()
	}
	return total
}
