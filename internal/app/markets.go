package app

import (
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// handleNewMarkets subscribes to new markets as they are discovered.
func (a *App) handleNewMarkets() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return
		case market, ok := <-a.discoveryService.NewMarketsChan():
			if !ok {
				return
			}
			a.subscribeToMarket(market)
		}
	}
}

// subscribeToMarket subscribes the stream to every outcome token a
// market carries, binary or multi-outcome alike.
func (a *App) subscribeToMarket(market *types.Market) {
	if len(market.Tokens) < 2 {
		a.logger.Warn("market-missing-tokens",
			zap.String("market-id", string(market.ID)),
			zap.String("slug", market.Slug),
			zap.Int("token-count", len(market.Tokens)))
		return
	}

	tokenIDs := make([]types.TokenId, 0, len(market.Tokens))
	for _, tok := range market.Tokens {
		tokenIDs = append(tokenIDs, tok.TokenID)
	}

	if err := a.stream.Subscribe(a.ctx, tokenIDs); err != nil {
		a.logger.Error("subscribe-failed",
			zap.String("market-id", string(market.ID)),
			zap.String("slug", market.Slug),
			zap.Error(err))
		return
	}

	a.logger.Info("subscribed-to-market",
		zap.String("slug", market.Slug),
		zap.String("question", market.Question),
		zap.Int("outcomes", len(market.Tokens)))
}
