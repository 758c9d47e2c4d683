package app

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/internal/inference"
	"github.com/polyarb/polyarb/internal/strategy"
	"github.com/polyarb/polyarb/pkg/types"
)

// Run starts the application and blocks until shutdown.
func (a *App) Run() error {
	a.logger.Info("application-starting",
		zap.String("mode", a.cfg.ExecutionMode),
		zap.Float64("arb-threshold", a.cfg.ArbThreshold),
		zap.String("log-level", a.cfg.LogLevel))

	if err := a.startComponents(); err != nil {
		return err
	}

	a.healthChecker.SetReady(true)

	a.logger.Info("application-ready",
		zap.String("http-addr", ":"+a.cfg.HTTPPort),
		zap.String("ws-url", a.cfg.PolymarketWSURL))

	return a.waitForShutdown()
}

func (a *App) startComponents() error {
	a.wg.Add(1)
	go a.runHTTPServer()

	time.Sleep(100 * time.Millisecond)

	a.wg.Add(1)
	go a.runDiscoveryService()

	if err := a.stream.Connect(a.ctx); err != nil {
		return fmt.Errorf("connect market stream: %w", err)
	}

	a.wg.Add(1)
	go a.runStreamMessages()

	a.wg.Add(1)
	go a.handleNewMarkets()

	a.wg.Add(1)
	go a.runDirtyDrain()

	a.wg.Add(1)
	go a.runClusterService()

	a.wg.Add(1)
	go a.runDetectionLoop()

	a.wg.Add(1)
	go a.runSettlement()

	if a.killSwitch != nil {
		a.wg.Add(1)
		go a.runKillSwitch()
	}

	if a.walletTracker != nil {
		a.wg.Add(1)
		go a.runWalletTracker()
	}

	if a.inferenceScheduler != nil {
		if err := a.inferenceScheduler.Start(a.ctx); err != nil {
			return fmt.Errorf("start inference scheduler: %w", err)
		}
	}

	if err := a.startExecutor(); err != nil {
		return fmt.Errorf("start executor: %w", err)
	}

	return nil
}

func (a *App) runHTTPServer() {
	defer a.wg.Done()
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http-server-error", zap.Error(err))
	}
}

func (a *App) runDiscoveryService() {
	defer a.wg.Done()
	err := a.discoveryService.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("discovery-service-error", zap.Error(err))
	}
}

func (a *App) runKillSwitch() {
	defer a.wg.Done()
	a.killSwitch.Run(a.ctx)
}

func (a *App) runWalletTracker() {
	defer a.wg.Done()
	err := a.walletTracker.Run(a.ctx)
	if err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("wallet-tracker-error", zap.Error(err))
	}
}

// runStreamMessages applies every inbound order book message to the
// cache, which marks the token dirty on successful application;
// runDirtyDrain later resolves dirty tokens to their markets.
func (a *App) runStreamMessages() {
	defer a.wg.Done()
	for {
		select {
		case <-a.ctx.Done():
			return
		case msg, ok := <-a.stream.Messages():
			if !ok {
				return
			}
			if err := a.obCache.Apply(msg); err != nil {
				a.logger.Debug("orderbook-apply-failed", zap.String("token", string(msg.TokenID)), zap.Error(err))
			}
		}
	}
}

// runDirtyDrain periodically drains tokens the order book cache marked
// dirty and resolves each to its owning market so the cluster service
// only re-evaluates clusters whose books actually moved.
func (a *App) runDirtyDrain() {
	defer a.wg.Done()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			for _, tokenID := range a.obCache.DrainDirty() {
				snap, ok := a.obCache.Snapshot(tokenID)
				if !ok {
					continue
				}
				a.clusterService.MarkDirty(snap.MarketID)
			}
		}
	}
}

func (a *App) runClusterService() {
	defer a.wg.Done()
	if err := a.clusterService.Run(a.ctx); err != nil && !errors.Is(err, a.ctx.Err()) {
		a.logger.Error("cluster-service-error", zap.Error(err))
	}
}

// runDetectionLoop drives the single-market strategies (single-condition,
// rebalancing) on a fixed tick. Cluster-spanning combinatorial detection
// runs on its own debounced schedule inside clusterService.
func (a *App) runDetectionLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.cfg.ArbDetectionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-a.ctx.Done():
			return
		case <-ticker.C:
			a.runDetectionCycle()
		}
	}
}

func (a *App) runDetectionCycle() {
	sctx := &strategy.Context{
		Books: a.obCache,
		// Clusters is left nil: the registered single-market strategies
		// never consult cluster membership, and the cluster-spanning
		// combinatorial strategy runs on its own schedule inside
		// clusterService rather than through this Context.
		Markets:    a.strategyMarketViews(),
		ClusterIDs: a.clusterCache.AllClusters(),
		Thresholds: strategy.Thresholds{
			SingleConditionMinEdge:   types.PriceFromFloat(a.cfg.SingleConditionMinEdge),
			SingleConditionMinProfit: types.VolumeFromFloat(a.cfg.SingleConditionMinProfit),
			RebalancingMinEdge:       types.PriceFromFloat(a.cfg.RebalancingMinEdge),
			RebalancingMinProfit:     types.VolumeFromFloat(a.cfg.RebalancingMinProfit),
			MaxPositionPerMarket:     types.VolumeFromFloat(a.cfg.MaxPositionPerMarket),
			CombinatorialEnabled:     a.cfg.CombinatorialEnabled,
			CombinatorialMaxIters:    a.cfg.CombinatorialMaxIters,
			CombinatorialTolerance:   a.cfg.CombinatorialTolerance,
			CombinatorialGapThresh:   a.cfg.CombinatorialGapThreshold,
		},
		TakerFee: types.PriceFromFloat(a.cfg.ArbTakerFee),
	}

	for _, opp := range a.registry.Detect(sctx) {
		a.dispatch(opp)
	}
}

// dispatch is the shared opportunity-handling path for both the
// detection-cycle ticker and the cluster service's debounced
// combinatorial evaluation: gate, record, and forward to the executor.
func (a *App) dispatch(opp *types.Opportunity) {
	decision := a.riskManager.Gate(opp)

	if err := a.store.RecordOpportunity(a.ctx, opp, decision.Approved, decision.Reason); err != nil {
		a.logger.Warn("record-opportunity-failed", zap.Error(err))
	}

	if !decision.Approved {
		return
	}

	if a.cfg.DryRun {
		a.positionTracker.Release(opp.ID)
		a.logger.Info("opportunity-approved-dry-run",
			zap.String("opportunity", opp.ID),
			zap.String("strategy", string(opp.Strategy)))
		return
	}

	select {
	case a.opportunityChan <- opp:
	default:
		a.positionTracker.Release(opp.ID)
		a.logger.Warn("opportunity-channel-full-dropping", zap.String("opportunity", opp.ID))
	}
}

func (a *App) startExecutor() error {
	if a.cfg.DryRun {
		a.logger.Info("executor-not-started", zap.String("reason", "dry_run mode, detection only"))
		return nil
	}
	return a.executor.Start(a.ctx)
}

// marketOutcomes resolves a market's current outcome tokens for the
// cluster cache's constraint builder.
func (a *App) marketOutcomes(marketID types.MarketId) ([]cluster.OutcomeRef, bool) {
	for _, sub := range a.discoveryService.GetSubscribedMarkets() {
		if sub.MarketID != marketID {
			continue
		}
		refs := make([]cluster.OutcomeRef, 0, len(sub.Outcomes))
		for _, o := range sub.Outcomes {
			refs = append(refs, cluster.OutcomeRef{TokenID: o.TokenID, MarketID: marketID, Outcome: o.Outcome})
		}
		return refs, true
	}
	return nil, false
}

// marketQuestions feeds the inference scheduler the set of currently
// subscribed markets to batch through relation inference.
func (a *App) marketQuestions() []inference.MarketQuestion {
	subs := a.discoveryService.GetSubscribedMarkets()
	out := make([]inference.MarketQuestion, 0, len(subs))
	for _, s := range subs {
		out = append(out, inference.MarketQuestion{MarketID: s.MarketID, Question: s.Question})
	}
	return out
}

// strategyMarketViews builds the per-market outcome view single-market
// strategies iterate over, from the currently subscribed markets.
func (a *App) strategyMarketViews() []strategy.MarketView {
	subs := a.discoveryService.GetSubscribedMarkets()
	views := make([]strategy.MarketView, 0, len(subs))
	for _, s := range subs {
		outcomes := make([]strategy.OutcomeRef, 0, len(s.Outcomes))
		for _, o := range s.Outcomes {
			outcomes = append(outcomes, strategy.OutcomeRef{TokenID: o.TokenID, MarketID: s.MarketID, Outcome: o.Outcome})
		}
		views = append(views, strategy.MarketView{
			MarketID:   s.MarketID,
			MarketSlug: s.MarketSlug,
			Question:   s.Question,
			Outcomes:   outcomes,
		})
	}
	return views
}

func (a *App) waitForShutdown() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		a.logger.Info("shutdown-signal-received", zap.String("signal", sig.String()))
	case <-a.ctx.Done():
		a.logger.Info("context-cancelled")
	}

	return a.Shutdown()
}
