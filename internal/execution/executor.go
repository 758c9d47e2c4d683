package execution

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/polyarb/polyarb/internal/notifier"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// PositionBook is the slice of risk.PositionTracker the executor needs:
// convert an already-reserved opportunity into an open position once
// its legs fill, or give the reservation back if they never do.
type PositionBook interface {
	Commit(opportunityID string, legs []types.Trade, lockedProfit types.Price) *types.Position
	Release(opportunityID string)
}

// MarketMetadata resolves the per-token order constraints and best bid
// an opportunity's legs need at submission and recovery time.
type MarketMetadata interface {
	TickSize(tokenID types.TokenId) types.Price
	MinOrderSize(tokenID types.TokenId) types.Volume
	BestBid(tokenID types.TokenId) (types.Price, bool)
}

// Executor submits risk-approved opportunities to the exchange (or
// simulates them in paper mode) and drives fill verification and
// partial-fill recovery to completion.
type Executor struct {
	mode             string
	logger           *zap.Logger
	opportunityChan  <-chan *types.Opportunity
	ctx              context.Context
	wg               sync.WaitGroup
	mu               sync.Mutex
	cumulativeProfit float64

	orderClient *OrderClient
	tracker     PositionBook
	metadata    MarketMetadata
	notifier    notifier.Notifier

	aggressionTicks  int
	fillTimeout      time.Duration
	fillRetryInitial time.Duration
	fillRetryMax     time.Duration
	fillRetryMult    float64
	takerFee         types.Price
	submitTimeout    time.Duration
	recoveryWindow   time.Duration
}

// Config holds executor construction parameters.
type Config struct {
	Mode               string
	Logger             *zap.Logger
	OpportunityChannel <-chan *types.Opportunity
	OrderClient        *OrderClient // nil in paper mode
	Tracker            PositionBook
	Metadata           MarketMetadata
	Notifier           notifier.Notifier // nil disables notifications

	AggressionTicks  int
	FillTimeout      time.Duration
	FillRetryInitial time.Duration
	FillRetryMax     time.Duration
	FillRetryMult    float64
	TakerFee         types.Price
	SubmitTimeout    time.Duration
	RecoveryWindow   time.Duration
}

func New(cfg *Config) *Executor {
	return &Executor{
		mode:             cfg.Mode,
		logger:           cfg.Logger,
		opportunityChan:  cfg.OpportunityChannel,
		orderClient:      cfg.OrderClient,
		tracker:          cfg.Tracker,
		metadata:         cfg.Metadata,
		notifier:         cfg.Notifier,
		aggressionTicks:  cfg.AggressionTicks,
		fillTimeout:      cfg.FillTimeout,
		fillRetryInitial: cfg.FillRetryInitial,
		fillRetryMax:     cfg.FillRetryMax,
		fillRetryMult:    cfg.FillRetryMult,
		takerFee:         cfg.TakerFee,
		submitTimeout:    cfg.SubmitTimeout,
		recoveryWindow:   cfg.RecoveryWindow,
	}
}

func (e *Executor) Start(ctx context.Context) error {
	e.ctx = ctx
	e.logger.Info("executor-starting", zap.String("mode", e.mode))

	e.wg.Add(1)
	go e.executionLoop()

	return nil
}

func (e *Executor) executionLoop() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			e.logger.Info("executor-stopping")
			return
		case opp, ok := <-e.opportunityChan:
			if !ok {
				e.logger.Info("opportunity-channel-closed")
				return
			}

			OpportunitiesReceived.Inc()

			start := time.Now()
			result := e.execute(opp)
			ExecutionDurationSeconds.Observe(time.Since(start).Seconds())

			if result.Error != nil {
				e.logger.Error("execution-failed", zap.String("opportunity-id", opp.ID), zap.Error(result.Error))
				errorType := classifyError(result.Error)
				ExecutionErrorsTotal.Inc()
				ExecutionErrorsByType.WithLabelValues(errorType).Inc()
				e.tracker.Release(opp.ID)
			} else {
				e.logger.Info("basket-submitted",
					zap.String("opportunity-id", opp.ID),
					zap.String("market-slug", opp.MarketSlug))
			}
		}
	}
}

func (e *Executor) execute(opp *types.Opportunity) *types.ExecutionResult {
	switch e.mode {
	case "paper":
		return e.executePaper(opp)
	case "live":
		return e.executeLive(opp)
	default:
		return &types.ExecutionResult{
			OpportunityID: opp.ID,
			ExecutedAt:    time.Now(),
			Success:       false,
			Error:         fmt.Errorf("unknown execution mode: %s", e.mode),
		}
	}
}

// executePaper simulates an immediate, fully-filled execution at the
// legs' limit prices.
func (e *Executor) executePaper(opp *types.Opportunity) *types.ExecutionResult {
	now := time.Now()

	trades := make([]types.Trade, len(opp.Legs))
	for i, leg := range opp.Legs {
		trades[i] = types.Trade{
			TokenID:   leg.TokenID,
			Side:      strings.ToUpper(leg.Side),
			Price:     leg.LimitPrice,
			Size:      leg.Size,
			Timestamp: now,
		}
		TradesTotal.WithLabelValues("paper", leg.Outcome).Inc()
	}

	realizedProfit := opp.NetProfit
	ProfitRealizedUSD.WithLabelValues("paper").Add(realizedProfit.Float64())

	e.mu.Lock()
	e.cumulativeProfit += realizedProfit.Float64()
	cumulative := e.cumulativeProfit
	e.mu.Unlock()

	e.logger.Info("paper-trade-executed",
		zap.String("market-slug", opp.MarketSlug),
		zap.Int("legs", len(opp.Legs)),
		zap.String("profit-usd", realizedProfit.String()),
		zap.Float64("cumulative-profit-usd", cumulative))

	e.tracker.Commit(opp.ID, trades, types.PriceFromFloat(realizedProfit.Float64()))
	OpportunitiesExecuted.Inc()

	return &types.ExecutionResult{
		OpportunityID:  opp.ID,
		ExecutedAt:     now,
		Fills:          trades,
		RealizedProfit: realizedProfit,
		Success:        true,
	}
}

// adjustPriceForAggression nudges a limit price past the ask by N
// ticks to improve fill probability, capping at the venue's max price.
func adjustPriceForAggression(limitPrice, tickSize types.Price, ticks int) types.Price {
	adjusted := limitPrice.Float64() + tickSize.Float64()*float64(ticks)
	ts := tickSize.Float64()
	if ts > 0 {
		adjusted = math.Round(adjusted/ts) * ts
	}
	if adjusted > 0.9999 {
		adjusted = 0.9999
		if ts > 0 {
			adjusted = math.Floor(adjusted/ts) * ts
		}
	}
	return types.PriceFromFloat(adjusted)
}

// executeLive signs and submits every leg of the basket atomically,
// then verifies fills asynchronously.
func (e *Executor) executeLive(opp *types.Opportunity) *types.ExecutionResult {
	now := time.Now()

	if e.orderClient == nil {
		return &types.ExecutionResult{
			OpportunityID: opp.ID,
			ExecutedAt:    now,
			Success:       false,
			Error:         fmt.Errorf("order client not configured"),
		}
	}

	legs := make([]Leg, len(opp.Legs))
	for i, oppLeg := range opp.Legs {
		tickSize := e.metadata.TickSize(oppLeg.TokenID)
		minSize := e.metadata.MinOrderSize(oppLeg.TokenID)
		adjustedPrice := adjustPriceForAggression(oppLeg.LimitPrice, tickSize, e.aggressionTicks)

		legs[i] = Leg{
			TokenID:  oppLeg.TokenID,
			Outcome:  oppLeg.Outcome,
			Side:     "BUY",
			Price:    adjustedPrice,
			TickSize: tickSize,
			MinSize:  minSize,
		}
	}

	e.logger.Info("placing-basket",
		zap.String("opportunity-id", opp.ID),
		zap.String("market-slug", opp.MarketSlug),
		zap.Int("legs", len(legs)))

	ctx, cancel := context.WithTimeout(e.ctx, e.submitTimeout)
	defer cancel()

	responses, err := e.orderClient.PlaceLegs(ctx, opp.ID, legs, perLegNotional(opp))
	if err != nil {
		e.logger.Error("basket-submission-failed", zap.String("opportunity-id", opp.ID), zap.Error(err))
		ExecutionErrorsTotal.Inc()
		return &types.ExecutionResult{
			OpportunityID: opp.ID,
			ExecutedAt:    now,
			Success:       false,
			Error:         err,
		}
	}
	LegsSubmittedTotal.Add(float64(len(legs)))

	pending := make([]PendingLeg, len(responses))
	for i, resp := range responses {
		pending[i] = PendingLeg{
			OrderID:  resp.OrderID,
			TokenID:  legs[i].TokenID,
			Outcome:  legs[i].Outcome,
			Expected: opp.Legs[i].Size,
		}
	}

	go e.verifyAndRecover(opp, legs, pending, now)

	return &types.ExecutionResult{
		OpportunityID: opp.ID,
		ExecutedAt:    now,
		Success:       true,
	}
}

// perLegNotional splits the basket's per-leg size into the USD amount
// PlaceLegs should spend on that leg.
func perLegNotional(opp *types.Opportunity) types.Volume {
	if len(opp.Legs) == 0 {
		return types.ZeroVolume
	}
	notional, err := types.VolumeFromDecimal(opp.Legs[0].LimitPrice.Mul(opp.Legs[0].Size))
	if err != nil {
		return types.ZeroVolume
	}
	return notional
}

// verifyAndRecover polls fills to completion, then classifies the
// basket as fully filled, partially filled, or failed, running the
// recovery path (cancel unfilled, unwind filled) on anything short of
// a full fill.
func (e *Executor) verifyAndRecover(opp *types.Opportunity, legs []Leg, pending []PendingLeg, submittedAt time.Time) {
	ctx, cancel := context.WithTimeout(context.Background(), e.fillTimeout+e.recoveryWindow+10*time.Second)
	defer cancel()

	tracker := NewFillTracker(e.orderClient, e.logger, &FillTrackerConfig{
		InitialBackoff: e.fillRetryInitial,
		MaxBackoff:     e.fillRetryMax,
		BackoffMult:    e.fillRetryMult,
		FillTimeout:    e.fillTimeout,
	})

	fillStart := time.Now()
	statuses, err := tracker.VerifyFills(ctx, pending)
	FillVerificationDurationSeconds.Observe(time.Since(fillStart).Seconds())

	if err != nil {
		e.logger.Error("fill-verification-canceled", zap.String("opportunity-id", opp.ID), zap.Error(err))
		FillVerificationTotal.WithLabelValues("error").Inc()
		e.tracker.Release(opp.ID)
		return
	}

	filled, unfilled := partitionFills(statuses)
	for range filled {
		LegsFilledTotal.Inc()
	}

	switch {
	case len(unfilled) == 0:
		e.settleFullFill(opp, legs, statuses, submittedAt)
	case len(filled) == 0:
		e.logger.Warn("basket-fully-unfilled", zap.String("opportunity-id", opp.ID))
		FillVerificationTotal.WithLabelValues("timeout").Inc()
		e.tracker.Release(opp.ID)
	default:
		FillVerificationTotal.WithLabelValues("partial").Inc()
		e.recoverPartialFill(opp, legs, statuses, unfilled)
	}
}

func partitionFills(statuses []types.FillStatus) (filled, unfilled []types.FillStatus) {
	for _, s := range statuses {
		if s.FullyFilled {
			filled = append(filled, s)
		} else {
			unfilled = append(unfilled, s)
		}
	}
	return filled, unfilled
}

func (e *Executor) settleFullFill(opp *types.Opportunity, legs []Leg, statuses []types.FillStatus, submittedAt time.Time) {
	FillVerificationTotal.WithLabelValues("success").Inc()

	trades := make([]types.Trade, len(statuses))
	totalCost := 0.0
	for i, s := range statuses {
		trades[i] = types.Trade{
			TokenID:   s.TokenID,
			Side:      "BUY",
			Price:     s.ActualPrice,
			Size:      s.SizeFilled,
			Timestamp: s.VerifiedAt,
		}
		totalCost += s.ActualPrice.Float64() * s.SizeFilled.Float64()
		TradesTotal.WithLabelValues("live", s.Outcome).Inc()

		if i < len(legs) {
			deviation := s.ActualPrice.Float64() - legs[i].Price.Float64()
			ActualFillPriceDeviation.Observe(deviation)
		}
	}

	revenue := statuses[0].SizeFilled.Float64()
	fees := totalCost * e.takerFee.Float64()
	actualProfit := revenue - totalCost - fees

	ProfitRealizedUSD.WithLabelValues("live").Add(actualProfit)

	e.mu.Lock()
	e.cumulativeProfit += actualProfit
	e.mu.Unlock()

	e.logger.Info("basket-fully-filled",
		zap.String("opportunity-id", opp.ID),
		zap.String("market-slug", opp.MarketSlug),
		zap.Float64("actual-profit-usd", actualProfit),
		zap.Duration("fill-duration", time.Since(submittedAt)))

	e.tracker.Commit(opp.ID, trades, types.PriceFromFloat(actualProfit))
	OpportunitiesExecuted.Inc()
	e.notify(notifier.SeverityInfo, "basket-fully-filled", map[string]any{
		"opportunity_id": opp.ID,
		"market_slug":    opp.MarketSlug,
		"profit_usd":     actualProfit,
	})
}

// notify forwards ev to the configured Notifier, a no-op when none was
// wired in (paper-trading setups, most tests).
func (e *Executor) notify(severity notifier.Severity, message string, fields map[string]any) {
	if e.notifier == nil {
		return
	}
	e.notifier.Notify(notifier.Event{Severity: severity, Message: message, Fields: fields})
}

// recoverPartialFill cancels whatever legs never filled and unwinds
// the legs that did, since a partial basket leaves naked directional
// exposure rather than the flat arbitrage position the strategy
// intended.
func (e *Executor) recoverPartialFill(opp *types.Opportunity, legs []Leg, statuses []types.FillStatus, unfilled []types.FillStatus) {
	ctx, cancel := context.WithTimeout(context.Background(), e.recoveryWindow)
	defer cancel()

	unfilledIDs := make([]string, 0, len(unfilled))
	for _, s := range unfilled {
		if s.OrderID != "" {
			unfilledIDs = append(unfilledIDs, s.OrderID)
		}
	}
	if err := e.orderClient.CancelOrders(ctx, unfilledIDs); err != nil {
		e.logger.Error("cancel-unfilled-legs-failed", zap.String("opportunity-id", opp.ID), zap.Error(err))
	} else {
		RecoveryActionsTotal.WithLabelValues("cancel_unfilled").Inc()
	}

	var unwindLegs []Leg
	for i, s := range statuses {
		if !s.FullyFilled || s.SizeFilled.IsZero() {
			continue
		}
		bid, ok := e.metadata.BestBid(s.TokenID)
		if !ok {
			bid = s.ActualPrice
		}
		unwindLegs = append(unwindLegs, Leg{
			TokenID:  s.TokenID,
			Outcome:  s.Outcome,
			Side:     "SELL",
			Price:    bid,
			TickSize: legs[i].TickSize,
			MinSize:  types.ZeroVolume,
		})
	}

	if len(unwindLegs) > 0 {
		notionalFloat := unwindLegs[0].Price.Float64() * statuses[0].SizeFilled.Float64()
		notional, err := types.NewVolume(fmt.Sprintf("%.6f", notionalFloat))
		if err != nil {
			notional = types.ZeroVolume
		}
		if _, err := e.orderClient.PlaceLegs(ctx, opp.ID+":unwind", unwindLegs, notional); err != nil {
			e.logger.Error("unwind-filled-legs-failed", zap.String("opportunity-id", opp.ID), zap.Error(err))
		} else {
			RecoveryActionsTotal.WithLabelValues("unwind_filled").Inc()
		}
	}

	e.logger.Warn("basket-partial-fill-recovered",
		zap.String("opportunity-id", opp.ID),
		zap.Int("filled-legs", len(statuses)-len(unfilled)),
		zap.Int("unfilled-legs", len(unfilled)))

	e.tracker.Release(opp.ID)
	e.notify(notifier.SeverityWarning, "basket-partial-fill-recovered", map[string]any{
		"opportunity_id": opp.ID,
		"filled_legs":    len(statuses) - len(unfilled),
		"unfilled_legs":  len(unfilled),
	})
}

func (e *Executor) Close() error {
	e.logger.Info("closing-executor")
	e.wg.Wait()

	e.mu.Lock()
	finalProfit := e.cumulativeProfit
	e.mu.Unlock()

	e.logger.Info("executor-closed", zap.Float64("total-profit-usd", finalProfit), zap.String("mode", e.mode))
	return nil
}

func classifyError(err error) string {
	if err == nil {
		return "unknown"
	}

	errMsg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errMsg, "connection refused"),
		strings.Contains(errMsg, "timeout"),
		strings.Contains(errMsg, "dial"),
		strings.Contains(errMsg, "eof"),
		strings.Contains(errMsg, "network"):
		return "network"
	case strings.Contains(errMsg, "api error"),
		strings.Contains(errMsg, "invalid"),
		strings.Contains(errMsg, "bad request"),
		strings.Contains(errMsg, "400"),
		strings.Contains(errMsg, "403"),
		strings.Contains(errMsg, "404"),
		strings.Contains(errMsg, "500"):
		return "api"
	case strings.Contains(errMsg, "missing"),
		strings.Contains(errMsg, "required"),
		strings.Contains(errMsg, "not configured"):
		return "validation"
	case strings.Contains(errMsg, "insufficient"),
		strings.Contains(errMsg, "balance"),
		strings.Contains(errMsg, "funds"):
		return "funds"
	default:
		return "unknown"
	}
}
