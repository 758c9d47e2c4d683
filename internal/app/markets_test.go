package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/polyarb/polyarb/internal/discovery"
	"github.com/polyarb/polyarb/internal/testutil"
	"github.com/polyarb/polyarb/pkg/cache"
	"github.com/polyarb/polyarb/pkg/types"
)

func TestSubscribeToMarketBinary(t *testing.T) {
	stream := testutil.NewFakeStream(10)
	a := &App{logger: zaptest.NewLogger(t), stream: stream}

	market := testutil.CreateTestMarket("m1", "will-x-happen", "Will X happen?")
	a.subscribeToMarket(market)

	for _, tok := range market.Tokens {
		require.True(t, stream.IsSubscribed(tok.TokenID), "expected token %s subscribed", tok.TokenID)
	}
}

func TestSubscribeToMarketMultiOutcome(t *testing.T) {
	stream := testutil.NewFakeStream(10)
	a := &App{logger: zaptest.NewLogger(t), stream: stream}

	market := testutil.CreateMultiOutcomeMarket("m2", "who-wins", "Who wins?", []string{"Alice", "Bob", "Carol"})
	a.subscribeToMarket(market)

	require.Len(t, market.Tokens, 3)
	for _, tok := range market.Tokens {
		require.True(t, stream.IsSubscribed(tok.TokenID), "expected token %s subscribed", tok.TokenID)
	}
}

func TestSubscribeToMarketMissingTokensSkipsSubscribe(t *testing.T) {
	stream := testutil.NewFakeStream(10)
	a := &App{logger: zaptest.NewLogger(t), stream: stream}

	market := testutil.CreateMultiOutcomeMarket("m3", "broken", "Broken market", []string{"Yes"})
	market.Tokens = market.Tokens[:1] // simulate a malformed single-token market

	a.subscribeToMarket(market)

	require.False(t, stream.IsSubscribed(market.Tokens[0].TokenID), "market with fewer than two tokens must not be subscribed")
}

func TestHandleNewMarketsSubscribesFromDiscoveredMarket(t *testing.T) {
	market := testutil.CreateTestMarket("m4", "handled", "Handled market?")
	mockAPI := testutil.NewMockGammaAPI([]*types.Market{market})
	defer mockAPI.Close()

	logger := zaptest.NewLogger(t)
	appCache, err := cache.NewRistrettoCache(&cache.RistrettoConfig{NumCounters: 100, MaxCost: 100, BufferItems: 64, Logger: logger})
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	defer appCache.Close()

	discoveryClient := discovery.NewClient(mockAPI.URL, logger)
	discoverySvc := discovery.New(&discovery.Config{
		Client:       discoveryClient,
		Cache:        appCache,
		PollInterval: 20 * time.Millisecond,
		MarketLimit:  10,
		Logger:       logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := testutil.NewFakeStream(10)
	a := &App{logger: logger, stream: stream, ctx: ctx, discoveryService: discoverySvc}

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		_ = discoverySvc.Run(ctx)
	}()
	a.wg.Add(1)
	go a.handleNewMarkets()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		allSubscribed := true
		for _, tok := range market.Tokens {
			if !stream.IsSubscribed(tok.TokenID) {
				allSubscribed = false
			}
		}
		if allSubscribed {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("timed out waiting for discovered market to be subscribed")
}
