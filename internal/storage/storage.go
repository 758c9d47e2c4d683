// Package storage implements the Store capability: persistence for
// opportunities, trades, daily statistics, and the cluster detection
// service's relations/clusters.
package storage

import (
	"context"
	"time"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/pkg/types"
)

// TradeRecord is a settled or closed position, flattened for storage.
type TradeRecord struct {
	ID             string
	OpportunityID  string
	Strategy       types.StrategyKind
	MarketIDs      []types.MarketId
	Legs           []types.Trade
	Size           types.Volume
	ExpectedProfit types.Volume
	RealizedProfit types.Price
	Status         types.PositionStatus
	OpenedAt       time.Time
	ClosedAt       time.Time
	CloseReason    string
}

// DailyStats is the daily_stats row: a running aggregate the
// orchestrator upserts as the day progresses.
type DailyStats struct {
	Date                   time.Time
	OpportunitiesDetected  int
	OpportunitiesExecuted  int
	OpportunitiesRejected  int
	TradesOpened           int
	TradesClosed           int
	ProfitRealized         float64
	LossRealized           float64
	WinCount               int
	LossCount              int
	TotalVolume            float64
	PeakExposure           float64
	LatencySumMs           int64
	LatencyCount           int64
}

// Store is the persistence capability for everything the detection and
// execution pipeline needs to survive a restart: opportunities (whether
// executed or rejected), settled trades, daily aggregate statistics,
// and the cluster detection service's inferred relations/clusters.
type Store interface {
	// RecordOpportunity persists a strategy-emitted opportunity along
	// with its risk-gating outcome. rejectedReason is empty when
	// executed is true.
	RecordOpportunity(ctx context.Context, opp *types.Opportunity, executed bool, rejectedReason string) error

	// RecordTrade persists a position's full lifecycle once it closes
	// (filled, partially recovered, or cancelled).
	RecordTrade(ctx context.Context, trade TradeRecord) error

	// UpsertDailyStats merges stats into the row for its Date, creating
	// the row on first write for that day.
	UpsertDailyStats(ctx context.Context, stats DailyStats) error

	// SaveRelation persists an inferred cross-market relation.
	SaveRelation(ctx context.Context, rel cluster.Relation) error

	// SaveCluster persists a cluster's membership and constraints.
	SaveCluster(ctx context.Context, cl cluster.Cluster) error

	// Close releases any underlying connection.
	Close() error
}
