package app

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/internal/discovery"
	"github.com/polyarb/polyarb/internal/execution"
	"github.com/polyarb/polyarb/internal/inference"
	"github.com/polyarb/polyarb/internal/marketstream"
	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/notifier"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/internal/risk"
	"github.com/polyarb/polyarb/internal/storage"
	"github.com/polyarb/polyarb/internal/strategy"
	"github.com/polyarb/polyarb/internal/telemetry"
	"github.com/polyarb/polyarb/pkg/cache"
	"github.com/polyarb/polyarb/pkg/config"
	"github.com/polyarb/polyarb/pkg/healthprobe"
	"github.com/polyarb/polyarb/pkg/httpserver"
	"github.com/polyarb/polyarb/pkg/types"
	"github.com/polyarb/polyarb/pkg/wallet"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	a := &App{
		cfg:             cfg,
		logger:          logger,
		opportunityChan: make(chan *types.Opportunity, 256),
		ctx:             ctx,
		cancel:          cancel,
	}

	a.healthChecker = healthprobe.New()
	a.notifier = notifier.NewLogNotifier(logger)

	tp, err := telemetry.New(ctx, telemetry.Config{
		Enabled:       cfg.TelemetryEnabled,
		ServiceName:   cfg.TelemetryServiceName,
		OTLPEndpoint:  cfg.TelemetryOTLPEndpoint,
		Insecure:      cfg.TelemetryInsecure,
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup telemetry: %w", err)
	}
	a.telemetry = tp

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}
	a.marketCache = marketCache

	a.discoveryService = setupDiscoveryService(cfg, logger, marketCache, opts)
	a.stream = setupMarketStream(cfg, logger)
	a.obCache = orderbook.New(logger)

	a.metadata = setupMarketMetadata(marketCache, a.obCache)

	a.clusterCache = cluster.New(a.marketOutcomes, logger)
	a.registry = setupStrategyRegistry(logger)
	a.clusterService = cluster.NewService(a.clusterCache, a.obCache, a.dispatch, cluster.ServiceConfig{
		DebounceInterval:          cfg.ClusterDebounceInterval,
		MaxClustersPerCycle:       cfg.MaxClustersPerCycle,
		CombinatorialMaxIters:     cfg.CombinatorialMaxIters,
		CombinatorialTolerance:    cfg.CombinatorialTolerance,
		CombinatorialGapThreshold: cfg.CombinatorialGapThreshold,
		TakerFee:                  types.PriceFromFloat(cfg.ArbTakerFee),
	}, logger)

	a.positionTracker = risk.NewPositionTracker()
	a.killSwitch = setupKillSwitch(cfg, logger, a.notifier)
	a.riskManager = risk.NewManager(a.killSwitch, a.positionTracker, a.obCache, risk.Thresholds{
		MinProfitThreshold:   types.VolumeFromFloat(cfg.RiskMinProfitThreshold),
		MaxPositionPerMarket: cfg.MaxPositionPerMarket,
		MaxTotalExposure:     cfg.RiskMaxTotalExposure,
		MaxSlippage:          types.PriceFromFloat(cfg.RiskMaxSlippage),
		ExecutionTimeout:     cfg.RiskExecutionTimeout,
		DryRun:               cfg.DryRun,
	}, logger)

	a.walletTracker = setupWalletTracker(cfg, logger)

	store, err := setupStorage(cfg, logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup storage: %w", err)
	}
	a.store = store

	if cfg.InferenceAPIKey != "" {
		a.llm = setupLlm(cfg)
		a.inferrer = inference.New(a.llm, a.clusterCache, inference.Config{
			BatchSize:     cfg.InferenceBatchSize,
			MinConfidence: cfg.InferenceMinConfidence,
			RelationTTL:   cfg.InferenceRelationTTL,
			RateLimit:     rate.Limit(cfg.InferenceRateLimit),
			RateBurst:     cfg.InferenceRateBurst,
		}, logger)

		scheduler, err := inference.NewScheduler(a.inferrer, a.marketQuestions, cfg.InferenceRefreshCron, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup inference scheduler: %w", err)
		}
		a.inferenceScheduler = scheduler
	} else {
		logger.Warn("inference-disabled-no-api-key", zap.String("note", "INFERENCE_API_KEY not set, cross-market relation detection disabled"))
	}

	if cfg.ExecutionMode == "live" {
		orderClient, err := setupOrderClient(cfg, logger)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("setup order client: %w", err)
		}
		a.orderClient = orderClient
	}

	a.executor = execution.New(&execution.Config{
		Mode:               cfg.ExecutionMode,
		Logger:             logger,
		OpportunityChannel: a.opportunityChan,
		OrderClient:        a.orderClient,
		Tracker:            a.positionTracker,
		Metadata:           a.metadata,
		Notifier:           a.notifier,
		AggressionTicks:    1,
		FillTimeout:        30 * time.Second,
		FillRetryInitial:   250 * time.Millisecond,
		FillRetryMax:       5 * time.Second,
		FillRetryMult:      2.0,
		TakerFee:           types.PriceFromFloat(cfg.ArbTakerFee),
		SubmitTimeout:      10 * time.Second,
		RecoveryWindow:     30 * time.Second,
	})

	a.httpServer = httpserver.New(&httpserver.Config{
		Port:             cfg.HTTPPort,
		Logger:           logger,
		HealthChecker:    a.healthChecker,
		OrderbookCache:   a.obCache,
		DiscoveryService: a.discoveryService,
		ClusterCache:     a.clusterCache,
	})

	return a, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 10000,
		MaxCost:     1000,
		BufferItems: 64,
		Logger:      logger,
	})
}

func setupDiscoveryService(cfg *config.Config, logger *zap.Logger, marketCache cache.Cache, opts *Options) *discovery.Service {
	discoveryClient := discovery.NewClient(cfg.PolymarketGammaURL, logger)
	return discovery.New(&discovery.Config{
		Client:            discoveryClient,
		Cache:             marketCache,
		PollInterval:      cfg.DiscoveryPollInterval,
		MarketLimit:       cfg.DiscoveryMarketLimit,
		MaxMarketDuration: cfg.MaxMarketDuration,
		Logger:            logger,
		SingleMarket:      opts.SingleMarket,
	})
}

func setupMarketStream(cfg *config.Config, logger *zap.Logger) marketstream.Stream {
	return marketstream.New(marketstream.Config{
		URL:                   cfg.PolymarketWSURL,
		DialTimeout:           cfg.WSDialTimeout,
		PongTimeout:           cfg.WSPongTimeout,
		PingInterval:          cfg.WSPingInterval,
		ReconnectInitialDelay: cfg.WSReconnectInitialDelay,
		ReconnectMaxDelay:     cfg.WSReconnectMaxDelay,
		ReconnectBackoffMult:  cfg.WSReconnectBackoffMult,
		MessageBufferSize:     cfg.WSMessageBufferSize,
		Logger:                logger,
	})
}

func setupMarketMetadata(appCache cache.Cache, books *orderbook.Cache) *markets.Cache {
	metadataClient := markets.NewMetadataClient()
	cachedMetadataClient := markets.NewCachedMetadataClient(metadataClient, appCache)
	return markets.NewCache(cachedMetadataClient, books)
}

func setupStrategyRegistry(logger *zap.Logger) *strategy.Registry {
	r := strategy.New(logger)
	r.Register(strategy.NewSingleCondition(logger))
	r.Register(strategy.NewMarketRebalancing(logger))
	return r
}

func setupStorage(cfg *config.Config, logger *zap.Logger) (storage.Store, error) {
	if cfg.StorageMode == "postgres" {
		pgStore, err := storage.NewPostgresStore(&storage.PostgresConfig{
			Host:     cfg.PostgresHost,
			Port:     cfg.PostgresPort,
			User:     cfg.PostgresUser,
			Password: cfg.PostgresPass,
			Database: cfg.PostgresDB,
			SSLMode:  cfg.PostgresSSL,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("create postgres store: %w", err)
		}
		return pgStore, nil
	}

	return storage.NewConsoleStore(logger), nil
}

func setupLlm(cfg *config.Config) inference.Llm {
	const llmTimeout = 30 * time.Second
	if cfg.InferenceProvider == "anthropic" {
		return inference.NewAnthropicCompatible(cfg.InferenceBaseURL, cfg.InferenceAPIKey, cfg.InferenceModel, llmTimeout)
	}
	return inference.NewOpenAICompatible(cfg.InferenceBaseURL, cfg.InferenceAPIKey, cfg.InferenceModel, llmTimeout)
}

// staticWallet reports a fixed balance for setups with no wallet
// credentials configured, so the kill switch's hysteresis never trips
// in paper-trading or dry-run deployments that never touch a real book.
type staticWallet struct{ balance float64 }

func (w staticWallet) GetBalances(ctx context.Context) (float64, error) { return w.balance, nil }

func setupKillSwitch(cfg *config.Config, logger *zap.Logger, notify notifier.Notifier) *risk.KillSwitch {
	ksCfg := risk.KillSwitchConfig{
		CheckInterval:   cfg.CircuitBreakerCheckInterval,
		TradeMultiplier: cfg.CircuitBreakerTradeMultiplier,
		MinAbsolute:     cfg.CircuitBreakerMinAbsolute,
		HysteresisRatio: cfg.CircuitBreakerHysteresisRatio,
	}

	if !cfg.CircuitBreakerEnabled {
		return risk.NewKillSwitch(staticWallet{balance: 1e9}, ksCfg, logger, notify)
	}

	privateKeyHex := os.Getenv("POLYMARKET_PRIVATE_KEY")
	if privateKeyHex == "" {
		logger.Warn("kill-switch-balance-checks-disabled-no-private-key",
			zap.String("note", "POLYMARKET_PRIVATE_KEY not set, trading proceeds without balance-derived kill switch"))
		return risk.NewKillSwitch(staticWallet{balance: 1e9}, ksCfg, logger, notify)
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		logger.Warn("kill-switch-balance-checks-disabled-invalid-key", zap.Error(err))
		return risk.NewKillSwitch(staticWallet{balance: 1e9}, ksCfg, logger, notify)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	rpcURL := os.Getenv("POLYGON_RPC_URL")
	if rpcURL == "" {
		rpcURL = "https://polygon-rpc.com"
	}

	walletClient, err := wallet.NewClient(rpcURL, logger)
	if err != nil {
		logger.Warn("kill-switch-balance-checks-disabled-wallet-client-failed", zap.Error(err))
		return risk.NewKillSwitch(staticWallet{balance: 1e9}, ksCfg, logger, notify)
	}

	adapter := wallet.NewBalanceAdapter(walletClient, address)
	logger.Info("kill-switch-balance-checks-enabled",
		zap.Duration("check-interval", ksCfg.CheckInterval),
		zap.Float64("trade-multiplier", ksCfg.TradeMultiplier))
	return risk.NewKillSwitch(adapter, ksCfg, logger, notify)
}

// setupWalletTracker builds the portfolio-polling Tracker, or nil when
// no trading credentials are configured: paper-trading and dry-run
// deployments never touch a real wallet, so there is nothing to poll.
func setupWalletTracker(cfg *config.Config, logger *zap.Logger) *wallet.Tracker {
	privateKeyHex := os.Getenv("POLYMARKET_PRIVATE_KEY")
	if privateKeyHex == "" {
		return nil
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		logger.Warn("wallet-tracker-disabled-invalid-key", zap.Error(err))
		return nil
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	rpcURL := os.Getenv("POLYGON_RPC_URL")
	if rpcURL == "" {
		rpcURL = "https://polygon-rpc.com"
	}

	tracker, err := wallet.New(&wallet.Config{
		RPCEndpoint:  rpcURL,
		Address:      address,
		PollInterval: cfg.WalletPollInterval,
		Logger:       logger,
	})
	if err != nil {
		logger.Warn("wallet-tracker-disabled-setup-failed", zap.Error(err))
		return nil
	}

	logger.Info("wallet-tracker-enabled",
		zap.Duration("poll-interval", cfg.WalletPollInterval),
		zap.String("address", address.Hex()))
	return tracker
}

func setupOrderClient(cfg *config.Config, logger *zap.Logger) (*execution.OrderClient, error) {
	privateKey := os.Getenv("POLYMARKET_PRIVATE_KEY")
	if privateKey == "" {
		return nil, fmt.Errorf("POLYMARKET_PRIVATE_KEY is required in live execution mode")
	}

	signatureType := 0
	if v := os.Getenv("POLYMARKET_SIGNATURE_TYPE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			signatureType = parsed
		}
	}

	return execution.NewOrderClient(&execution.OrderClientConfig{
		APIKey:        cfg.PolymarketAPIKey,
		Secret:        cfg.PolymarketSecret,
		Passphrase:    cfg.PolymarketPassphrase,
		PrivateKey:    privateKey,
		Address:       os.Getenv("POLYMARKET_ADDRESS"),
		ProxyAddress:  os.Getenv("POLYMARKET_PROXY_ADDRESS"),
		SignatureType: signatureType,
		Logger:        logger,
	})
}

