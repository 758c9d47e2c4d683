package app

import (
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// runSettlement closes out open positions once their market leaves the
// discovery service's active set (resolved, or otherwise delisted).
// Every registered strategy builds a delta-neutral basket whose payout
// is fixed regardless of which outcome wins, so the position's P&L is
// already locked in at fill time (Commit records it as LockedProfit) -
// settlement only needs to release the held exposure once the market
// stops trading.
func (a *App) runSettlement() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case sub, ok := <-a.discoveryService.ResolvedMarketsChan():
			if !ok {
				return
			}
			a.settleMarket(sub)
		}
	}
}

// settleMarket closes every open position tracked against sub's market,
// releasing their reserved exposure and recording the locked-in P&L.
func (a *App) settleMarket(sub *types.MarketSubscription) {
	for _, pos := range a.positionTracker.OpenPositionsForMarket(sub.MarketID) {
		a.positionTracker.Close(pos.OpportunityID, pos.LockedProfit, "market-resolved")
		a.logger.Info("position-settled",
			zap.String("opportunity-id", pos.OpportunityID),
			zap.String("market-id", string(sub.MarketID)),
			zap.String("market-slug", sub.MarketSlug),
			zap.String("locked-profit-usd", pos.LockedProfit.String()))
	}
}
