package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/pkg/types"
)

// ConsoleStore implements Store by structured-logging every write
// instead of persisting it, for local runs without a Postgres instance.
type ConsoleStore struct {
	logger *zap.Logger
}

// NewConsoleStore creates a console-backed Store.
func NewConsoleStore(logger *zap.Logger) *ConsoleStore {
	logger.Info("console-store-initialized")
	return &ConsoleStore{logger: logger}
}

func (c *ConsoleStore) RecordOpportunity(ctx context.Context, opp *types.Opportunity, executed bool, rejectedReason string) error {
	c.logger.Info("opportunity",
		zap.String("id", opp.ID),
		zap.String("strategy", string(opp.Strategy)),
		zap.String("market-slug", opp.MarketSlug),
		zap.String("edge", opp.Edge.String()),
		zap.String("net-profit", opp.NetProfit.String()),
		zap.Bool("executed", executed),
		zap.String("rejected-reason", rejectedReason))
	return nil
}

func (c *ConsoleStore) RecordTrade(ctx context.Context, trade TradeRecord) error {
	c.logger.Info("trade",
		zap.String("id", trade.ID),
		zap.String("opportunity-id", trade.OpportunityID),
		zap.String("status", string(trade.Status)),
		zap.String("realized-profit", trade.RealizedProfit.String()),
		zap.String("close-reason", trade.CloseReason))
	return nil
}

func (c *ConsoleStore) UpsertDailyStats(ctx context.Context, stats DailyStats) error {
	c.logger.Info("daily-stats",
		zap.Time("date", stats.Date),
		zap.Int("opportunities-detected", stats.OpportunitiesDetected),
		zap.Int("opportunities-executed", stats.OpportunitiesExecuted),
		zap.Float64("profit-realized", stats.ProfitRealized))
	return nil
}

func (c *ConsoleStore) SaveRelation(ctx context.Context, rel cluster.Relation) error {
	c.logger.Info("relation",
		zap.String("id", string(rel.ID)),
		zap.String("kind", string(rel.Kind)),
		zap.Float64("confidence", rel.Confidence))
	return nil
}

func (c *ConsoleStore) SaveCluster(ctx context.Context, cl cluster.Cluster) error {
	c.logger.Info("cluster",
		zap.String("id", string(cl.ID)),
		zap.Int("market-count", len(cl.MarketIDs)),
		zap.Int("constraint-count", len(cl.Constraints)))
	return nil
}

// Close is a no-op for console storage.
func (c *ConsoleStore) Close() error {
	c.logger.Info("closing-console-store")
	return nil
}
