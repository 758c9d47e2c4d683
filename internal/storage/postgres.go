package storage

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/pkg/types"
)

// PostgresStore implements Store using PostgreSQL. JSON-shaped columns
// (market_ids, legs, constraints) are marshaled with goccy/go-json, the
// same encoder the market data stream uses for wire decoding.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStore opens and pings a PostgreSQL connection.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{db: db, logger: cfg.Logger}, nil
}

func marketIDsJSON(ids []types.MarketId) ([]byte, error) {
	return json.Marshal(ids)
}

// RecordOpportunity inserts a row into opportunities.
func (p *PostgresStore) RecordOpportunity(ctx context.Context, opp *types.Opportunity, executed bool, rejectedReason string) error {
	marketIDs := make([]types.MarketId, 0, 1)
	marketIDs = append(marketIDs, opp.MarketID)
	idsJSON, err := marketIDsJSON(marketIDs)
	if err != nil {
		return fmt.Errorf("marshal market_ids: %w", err)
	}

	const query = `
		INSERT INTO opportunities (
			id, strategy, market_ids_json, edge, expected_profit, detected_at, executed, rejected_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = p.db.ExecContext(ctx, query,
		opp.ID,
		string(opp.Strategy),
		idsJSON,
		opp.Edge.Float64(),
		opp.ExpectedProfit.Float64(),
		opp.DetectedAt,
		executed,
		rejectedReason,
	)
	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	p.logger.Debug("opportunity-stored",
		zap.String("opportunity-id", opp.ID),
		zap.String("strategy", string(opp.Strategy)),
		zap.Bool("executed", executed))

	return nil
}

// RecordTrade inserts a row into trades.
func (p *PostgresStore) RecordTrade(ctx context.Context, trade TradeRecord) error {
	idsJSON, err := marketIDsJSON(trade.MarketIDs)
	if err != nil {
		return fmt.Errorf("marshal market_ids: %w", err)
	}
	legsJSON, err := json.Marshal(trade.Legs)
	if err != nil {
		return fmt.Errorf("marshal legs: %w", err)
	}

	const query = `
		INSERT INTO trades (
			id, opportunity_id, strategy, market_ids_json, legs_json, size,
			expected_profit, realized_profit, status, opened_at, closed_at, close_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = p.db.ExecContext(ctx, query,
		trade.ID,
		trade.OpportunityID,
		string(trade.Strategy),
		idsJSON,
		legsJSON,
		trade.Size.Float64(),
		trade.ExpectedProfit.Float64(),
		trade.RealizedProfit.Float64(),
		string(trade.Status),
		trade.OpenedAt,
		trade.ClosedAt,
		trade.CloseReason,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	p.logger.Debug("trade-stored",
		zap.String("trade-id", trade.ID),
		zap.String("opportunity-id", trade.OpportunityID),
		zap.String("status", string(trade.Status)))

	return nil
}

// UpsertDailyStats merges stats into the day's row, summing counters,
// realized profit and loss, volume and latency totals, and keeping the
// larger peak_exposure.
func (p *PostgresStore) UpsertDailyStats(ctx context.Context, stats DailyStats) error {
	const query = `
		INSERT INTO daily_stats (
			date, opportunities_detected, opportunities_executed, opportunities_rejected,
			trades_opened, trades_closed, profit_realized, loss_realized,
			win_count, loss_count, total_volume, peak_exposure, latency_sum_ms, latency_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (date) DO UPDATE SET
			opportunities_detected = daily_stats.opportunities_detected + EXCLUDED.opportunities_detected,
			opportunities_executed = daily_stats.opportunities_executed + EXCLUDED.opportunities_executed,
			opportunities_rejected = daily_stats.opportunities_rejected + EXCLUDED.opportunities_rejected,
			trades_opened = daily_stats.trades_opened + EXCLUDED.trades_opened,
			trades_closed = daily_stats.trades_closed + EXCLUDED.trades_closed,
			profit_realized = daily_stats.profit_realized + EXCLUDED.profit_realized,
			loss_realized = daily_stats.loss_realized + EXCLUDED.loss_realized,
			win_count = daily_stats.win_count + EXCLUDED.win_count,
			loss_count = daily_stats.loss_count + EXCLUDED.loss_count,
			total_volume = daily_stats.total_volume + EXCLUDED.total_volume,
			peak_exposure = GREATEST(daily_stats.peak_exposure, EXCLUDED.peak_exposure),
			latency_sum_ms = daily_stats.latency_sum_ms + EXCLUDED.latency_sum_ms,
			latency_count = daily_stats.latency_count + EXCLUDED.latency_count
	`
	_, err := p.db.ExecContext(ctx, query,
		stats.Date,
		stats.OpportunitiesDetected,
		stats.OpportunitiesExecuted,
		stats.OpportunitiesRejected,
		stats.TradesOpened,
		stats.TradesClosed,
		stats.ProfitRealized,
		stats.LossRealized,
		stats.WinCount,
		stats.LossCount,
		stats.TotalVolume,
		stats.PeakExposure,
		stats.LatencySumMs,
		stats.LatencyCount,
	)
	if err != nil {
		return fmt.Errorf("upsert daily_stats: %w", err)
	}
	return nil
}

// SaveRelation upserts a row into relations.
func (p *PostgresStore) SaveRelation(ctx context.Context, rel cluster.Relation) error {
	idsJSON, err := marketIDsJSON(rel.MarketIDs)
	if err != nil {
		return fmt.Errorf("marshal market_ids: %w", err)
	}
	kindJSON, err := json.Marshal(rel.Kind)
	if err != nil {
		return fmt.Errorf("marshal kind: %w", err)
	}

	const query = `
		INSERT INTO relations (id, kind_json, confidence, reasoning, inferred_at, expires_at, market_ids_json)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			kind_json = EXCLUDED.kind_json,
			confidence = EXCLUDED.confidence,
			reasoning = EXCLUDED.reasoning,
			inferred_at = EXCLUDED.inferred_at,
			expires_at = EXCLUDED.expires_at,
			market_ids_json = EXCLUDED.market_ids_json
	`
	_, err = p.db.ExecContext(ctx, query,
		string(rel.ID),
		kindJSON,
		rel.Confidence,
		rel.Reasoning,
		rel.InferredAt,
		rel.ExpiresAt,
		idsJSON,
	)
	if err != nil {
		return fmt.Errorf("upsert relation: %w", err)
	}
	return nil
}

// SaveCluster upserts a row into clusters.
func (p *PostgresStore) SaveCluster(ctx context.Context, cl cluster.Cluster) error {
	idsJSON, err := marketIDsJSON(cl.MarketIDs)
	if err != nil {
		return fmt.Errorf("marshal market_ids: %w", err)
	}
	relIDsJSON, err := json.Marshal(cl.RelationIDs)
	if err != nil {
		return fmt.Errorf("marshal relation_ids: %w", err)
	}
	constraintsJSON, err := json.Marshal(cl.Constraints)
	if err != nil {
		return fmt.Errorf("marshal constraints: %w", err)
	}

	const query = `
		INSERT INTO clusters (id, market_ids_json, relation_ids_json, constraints_json, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			market_ids_json = EXCLUDED.market_ids_json,
			relation_ids_json = EXCLUDED.relation_ids_json,
			constraints_json = EXCLUDED.constraints_json,
			updated_at = EXCLUDED.updated_at
	`
	_, err = p.db.ExecContext(ctx, query,
		string(cl.ID),
		idsJSON,
		relIDsJSON,
		constraintsJSON,
		cl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cluster: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (p *PostgresStore) Close() error {
	p.logger.Info("closing-postgres-store")
	return p.db.Close()
}
