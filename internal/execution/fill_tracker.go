package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// FillTracker polls order status with exponential backoff until every
// leg of a basket is fully filled or the fill window expires, leaving
// any unfilled legs for the Executor's recovery path. A failed or
// cancelled order is polled like any other unfilled one.
type FillTracker struct {
	orderClient    *OrderClient
	logger         *zap.Logger
	initialBackoff time.Duration
	maxBackoff     time.Duration
	backoffMult    float64
	fillTimeout    time.Duration
}

// FillTrackerConfig controls polling cadence and overall patience.
type FillTrackerConfig struct {
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	BackoffMult    float64
	FillTimeout    time.Duration
}

func NewFillTracker(orderClient *OrderClient, logger *zap.Logger, cfg *FillTrackerConfig) *FillTracker {
	return &FillTracker{
		orderClient:    orderClient,
		logger:         logger,
		initialBackoff: cfg.InitialBackoff,
		maxBackoff:     cfg.MaxBackoff,
		backoffMult:    cfg.BackoffMult,
		fillTimeout:    cfg.FillTimeout,
	}
}

// PendingLeg identifies one order awaiting fill verification.
type PendingLeg struct {
	OrderID  string
	TokenID  types.TokenId
	Outcome  string
	Expected types.Volume
}

// VerifyFills polls every leg's order until all are fully filled or the
// fill timeout elapses, whichever comes first. It never returns an
// error for unfilled orders on timeout — callers inspect FullyFilled
// per leg and drive the recovery path themselves.
func (ft *FillTracker) VerifyFills(ctx context.Context, legs []PendingLeg) ([]types.FillStatus, error) {
	startTime := time.Now()
	timeout := time.NewTimer(ft.fillTimeout)
	defer timeout.Stop()

	statuses := make([]types.FillStatus, len(legs))
	for i, leg := range legs {
		statuses[i] = types.FillStatus{
			OrderID:      leg.OrderID,
			TokenID:      leg.TokenID,
			Outcome:      leg.Outcome,
			OriginalSize: leg.Expected,
		}
	}

	backoff := ft.initialBackoff
	attempt := 1

	for {
		allFilled := true
		for i := range statuses {
			if statuses[i].FullyFilled {
				continue
			}

			orderResp, err := ft.orderClient.GetOrder(ctx, statuses[i].OrderID)
			if err != nil {
				ft.logger.Warn("order-query-failed-retrying",
					zap.String("order-id", statuses[i].OrderID),
					zap.Error(err),
					zap.Int("attempt", attempt))
				allFilled = false
				continue
			}

			sizeFilled, parseErr := types.NewVolume(fmt.Sprintf("%.6f", orderResp.SizeFilled))
			if parseErr != nil {
				sizeFilled = types.ZeroVolume
			}
			price, priceErr := types.NewPrice(fmt.Sprintf("%.6f", orderResp.Price))
			if priceErr != nil {
				price = types.ZeroPrice
			}

			statuses[i].Status = orderResp.Status
			statuses[i].SizeFilled = sizeFilled
			statuses[i].ActualPrice = price
			statuses[i].VerifiedAt = time.Now()

			if statuses[i].RemainingSize().IsZero() {
				statuses[i].FullyFilled = true
				ft.logger.Info("leg-fully-filled",
					zap.String("order-id", statuses[i].OrderID),
					zap.String("outcome", statuses[i].Outcome),
					zap.String("size-filled", sizeFilled.String()),
					zap.Duration("duration", time.Since(startTime)))
			} else {
				allFilled = false
			}
		}

		if allFilled {
			ft.logger.Info("all-legs-fully-filled",
				zap.Int("leg-count", len(legs)),
				zap.Duration("total-duration", time.Since(startTime)),
				zap.Int("attempts", attempt))
			return statuses, nil
		}

		select {
		case <-timeout.C:
			ft.logger.Warn("fill-verification-timeout",
				zap.Int("leg-count", len(legs)),
				zap.Duration("timeout", ft.fillTimeout),
				zap.Int("attempts", attempt))
			for i := range statuses {
				if !statuses[i].FullyFilled {
					statuses[i].Error = fmt.Errorf("fill verification timeout after %s", ft.fillTimeout)
				}
			}
			return statuses, nil

		case <-ctx.Done():
			ft.logger.Warn("fill-verification-canceled", zap.Error(ctx.Err()), zap.Int("attempts", attempt))
			return statuses, ctx.Err()

		case <-time.After(backoff):
			attempt++
			backoff = time.Duration(float64(backoff) * ft.backoffMult)
			if backoff > ft.maxBackoff {
				backoff = ft.maxBackoff
			}
		}
	}
}
