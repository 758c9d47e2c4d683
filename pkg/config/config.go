package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// Polymarket API
	PolymarketWSURL      string
	PolymarketGammaURL   string
	PolymarketAPIKey     string
	PolymarketSecret     string
	PolymarketPassphrase string

	// Market Discovery
	DiscoveryPollInterval time.Duration
	DiscoveryMarketLimit  int
	MaxMarketDuration     time.Duration // Only subscribe to markets expiring within this duration

	// Market Cleanup
	CleanupInterval time.Duration // How often cleanup command checks for stale markets

	// WebSocket
	WSPoolSize              int // Number of WebSocket connections (default: 20)
	WSDialTimeout           time.Duration
	WSPongTimeout           time.Duration
	WSPingInterval          time.Duration
	WSReconnectInitialDelay time.Duration
	WSReconnectMaxDelay     time.Duration
	WSReconnectBackoffMult  float64
	WSMessageBufferSize     int

	// Arbitrage Detection
	ArbThreshold         float64
	ArbMinTradeSize      float64
	ArbMaxTradeSize      float64
	ArbDetectionInterval time.Duration
	ArbMakerFee          float64
	ArbTakerFee          float64

	// Execution
	ExecutionMode            string
	ExecutionMaxPositionSize float64

	// Circuit Breaker
	CircuitBreakerEnabled         bool
	CircuitBreakerCheckInterval   time.Duration
	CircuitBreakerTradeMultiplier float64
	CircuitBreakerMinAbsolute     float64
	CircuitBreakerHysteresisRatio float64

	// Wallet portfolio monitoring (pkg/wallet.Tracker): runs only when
	// POLYMARKET_PRIVATE_KEY is set, same credential the kill switch's
	// balance check and the live order client use.
	WalletPollInterval time.Duration

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Strategies (strategies.*): which detectors run and their per-strategy
	// edge/profit gates, gathered into risk.Thresholds/strategy.Thresholds
	// at wiring time.
	StrategiesEnabled         []string
	SingleConditionMinEdge    float64
	SingleConditionMinProfit  float64
	RebalancingMinEdge        float64
	RebalancingMinProfit      float64
	MaxPositionPerMarket      float64
	CombinatorialEnabled      bool
	CombinatorialMaxIters     int
	CombinatorialTolerance    float64
	CombinatorialGapThreshold float64

	// Cluster Detection (cluster_detection.*)
	ClusterDebounceInterval time.Duration
	MaxClustersPerCycle     int

	// LLM Inference (inference.*)
	InferenceProvider      string // "openai" or "anthropic"
	InferenceAPIKey        string
	InferenceBaseURL       string
	InferenceModel         string
	InferenceBatchSize     int
	InferenceMinConfidence float64
	InferenceRelationTTL   time.Duration
	InferenceRateLimit     float64 // requests per second
	InferenceRateBurst     int
	InferenceRefreshCron   string // cron spec driving the inference.Scheduler's periodic refresh

	// Risk (risk.*), feeding risk.Thresholds/risk.KillSwitchConfig
	RiskMinProfitThreshold float64
	RiskMaxTotalExposure   float64
	RiskMaxSlippage        float64
	RiskExecutionTimeout   time.Duration

	// Reconnection (reconnection.*) jitter fraction. It is validated
	// here but not passed to marketstream, whose client sets a fixed
	// JitterPercent of 0.2.
	WSReconnectJitterPercent float64

	// DryRun gates every RiskManager decision through the full pipeline
	// without forwarding approvals to the Executor.
	DryRun bool

	// Telemetry (telemetry.*), feeding internal/telemetry.Config
	TelemetryEnabled      bool
	TelemetryServiceName  string
	TelemetryOTLPEndpoint string
	TelemetryInsecure     bool
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Polymarket API defaults
		PolymarketWSURL:      getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		PolymarketGammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		PolymarketAPIKey:     os.Getenv("POLYMARKET_API_KEY"),
		PolymarketSecret:     os.Getenv("POLYMARKET_SECRET"),
		PolymarketPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),

		// Market Discovery defaults
		DiscoveryPollInterval: getDurationOrDefault("DISCOVERY_POLL_INTERVAL", 30*time.Second),
		DiscoveryMarketLimit:  getIntOrDefault("DISCOVERY_MARKET_LIMIT", 1000),
		MaxMarketDuration:     getDurationOrDefault("ARB_MAX_MARKET_DURATION", 0), // 0 = unlimited

		// Market Cleanup defaults
		CleanupInterval: getDurationOrDefault("CLEANUP_CHECK_INTERVAL", 5*time.Minute),

		// WebSocket defaults
		WSPoolSize:              getIntOrDefault("WS_POOL_SIZE", 20),
		WSDialTimeout:           getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPongTimeout:           getDurationOrDefault("WS_PONG_TIMEOUT", 15*time.Second),
		WSPingInterval:          getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 30*time.Second),
		WSReconnectBackoffMult:  getFloat64OrDefault("WS_RECONNECT_BACKOFF_MULTIPLIER", 2.0),
		WSMessageBufferSize:     getIntOrDefault("WS_MESSAGE_BUFFER_SIZE", 10000),

		// Arbitrage defaults
		ArbThreshold:         getFloat64OrDefault("ARB_THRESHOLD", 0.995),
		ArbMinTradeSize:      getFloat64OrDefault("ARB_MIN_TRADE_SIZE", 1.0),
		ArbMaxTradeSize:      getFloat64OrDefault("ARB_MAX_TRADE_SIZE", 2.0),
		ArbDetectionInterval: getDurationOrDefault("ARB_DETECTION_INTERVAL", 100*time.Millisecond),
		ArbMakerFee:          getFloat64OrDefault("ARB_MAKER_FEE", 0.0000), // 0% maker fee on Polymarket
		ArbTakerFee:          getFloat64OrDefault("ARB_TAKER_FEE", 0.0100), // 1% taker fee

		// Execution defaults
		ExecutionMode:            getEnvOrDefault("EXECUTION_MODE", "paper"),
		ExecutionMaxPositionSize: getFloat64OrDefault("EXECUTION_MAX_POSITION_SIZE", 1000.0),

		// Circuit Breaker defaults
		CircuitBreakerEnabled:         getBoolOrDefault("CIRCUIT_BREAKER_ENABLED", true),
		CircuitBreakerCheckInterval:   getDurationOrDefault("CIRCUIT_BREAKER_CHECK_INTERVAL", 300*time.Second),
		CircuitBreakerTradeMultiplier: getFloat64OrDefault("CIRCUIT_BREAKER_TRADE_MULTIPLIER", 3.0),
		CircuitBreakerMinAbsolute:     getFloat64OrDefault("CIRCUIT_BREAKER_MIN_ABSOLUTE", 5.0),
		CircuitBreakerHysteresisRatio: getFloat64OrDefault("CIRCUIT_BREAKER_HYSTERESIS_RATIO", 1.5),

		// Wallet portfolio monitoring defaults
		WalletPollInterval: getDurationOrDefault("WALLET_POLL_INTERVAL", 60*time.Second),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "polymarket"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "polymarket123"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "polymarket_arb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		// Strategy defaults
		StrategiesEnabled:         getStringSliceOrDefault("STRATEGIES_ENABLED", []string{"single_condition", "rebalancing", "combinatorial"}),
		SingleConditionMinEdge:    getFloat64OrDefault("STRATEGIES_SINGLE_CONDITION_MIN_EDGE", 0.01),
		SingleConditionMinProfit:  getFloat64OrDefault("STRATEGIES_SINGLE_CONDITION_MIN_PROFIT", 0.10),
		RebalancingMinEdge:        getFloat64OrDefault("STRATEGIES_REBALANCING_MIN_EDGE", 0.01),
		RebalancingMinProfit:      getFloat64OrDefault("STRATEGIES_REBALANCING_MIN_PROFIT", 0.10),
		MaxPositionPerMarket:      getFloat64OrDefault("STRATEGIES_MAX_POSITION_PER_MARKET", 500.0),
		CombinatorialEnabled:      getBoolOrDefault("STRATEGIES_COMBINATORIAL_ENABLED", true),
		CombinatorialMaxIters:     getIntOrDefault("STRATEGIES_COMBINATORIAL_MAX_ITERS", 500),
		CombinatorialTolerance:    getFloat64OrDefault("STRATEGIES_COMBINATORIAL_TOLERANCE", 1e-6),
		CombinatorialGapThreshold: getFloat64OrDefault("STRATEGIES_COMBINATORIAL_GAP_THRESHOLD", 0.005),

		// Cluster detection defaults
		ClusterDebounceInterval: getDurationOrDefault("CLUSTER_DETECTION_DEBOUNCE_INTERVAL", 500*time.Millisecond),
		MaxClustersPerCycle:     getIntOrDefault("CLUSTER_DETECTION_MAX_CLUSTERS_PER_CYCLE", 50),

		// Inference defaults
		InferenceProvider:      getEnvOrDefault("INFERENCE_PROVIDER", "openai"),
		InferenceAPIKey:        os.Getenv("INFERENCE_API_KEY"),
		InferenceBaseURL:       getEnvOrDefault("INFERENCE_BASE_URL", "https://api.openai.com/v1"),
		InferenceModel:         getEnvOrDefault("INFERENCE_MODEL", "gpt-4o-mini"),
		InferenceBatchSize:     getIntOrDefault("INFERENCE_BATCH_SIZE", 20),
		InferenceMinConfidence: getFloat64OrDefault("INFERENCE_MIN_CONFIDENCE", 0.75),
		InferenceRelationTTL:   getDurationOrDefault("INFERENCE_RELATION_TTL", 24*time.Hour),
		InferenceRateLimit:     getFloat64OrDefault("INFERENCE_RATE_LIMIT", 1.0),
		InferenceRateBurst:     getIntOrDefault("INFERENCE_RATE_BURST", 2),
		InferenceRefreshCron:   getEnvOrDefault("INFERENCE_REFRESH_CRON", "0 */6 * * *"),

		// Risk defaults
		RiskMinProfitThreshold: getFloat64OrDefault("RISK_MIN_PROFIT_THRESHOLD", 0.10),
		RiskMaxTotalExposure:   getFloat64OrDefault("RISK_MAX_TOTAL_EXPOSURE", 5000.0),
		RiskMaxSlippage:        getFloat64OrDefault("RISK_MAX_SLIPPAGE", 0.02),
		RiskExecutionTimeout:   getDurationOrDefault("RISK_EXECUTION_TIMEOUT", 5*time.Second),

		// Reconnection defaults
		WSReconnectJitterPercent: getFloat64OrDefault("RECONNECTION_JITTER_PERCENT", 0.2),

		// dry_run default
		DryRun: getBoolOrDefault("DRY_RUN", false),

		// telemetry defaults
		TelemetryEnabled:      getBoolOrDefault("TELEMETRY_ENABLED", false),
		TelemetryServiceName:  getEnvOrDefault("TELEMETRY_SERVICE_NAME", "polyarb"),
		TelemetryOTLPEndpoint: getEnvOrDefault("TELEMETRY_OTLP_ENDPOINT", "localhost:4318"),
		TelemetryInsecure:     getBoolOrDefault("TELEMETRY_INSECURE", true),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() (err error) {
	if c.HTTPPort == "" {
		return errors.New("HTTP_PORT cannot be empty")
	}

	if c.PolymarketWSURL == "" {
		return errors.New("POLYMARKET_WS_URL cannot be empty")
	}

	if c.PolymarketGammaURL == "" {
		return errors.New("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if c.ArbThreshold <= 0 || c.ArbThreshold >= 1.0 {
		return fmt.Errorf("ARB_THRESHOLD must be between 0 and 1.0, got %f", c.ArbThreshold)
	}

	if c.ExecutionMode != "paper" && c.ExecutionMode != "live" && c.ExecutionMode != "dry-run" {
		return fmt.Errorf("EXECUTION_MODE must be 'paper', 'live', or 'dry-run', got %q", c.ExecutionMode)
	}

	// Validate trade size configuration
	if c.ArbMinTradeSize <= 0 {
		return fmt.Errorf("ARB_MIN_TRADE_SIZE must be positive, got %f", c.ArbMinTradeSize)
	}

	if c.ArbMaxTradeSize <= 0 {
		return fmt.Errorf("ARB_MAX_TRADE_SIZE must be positive, got %f", c.ArbMaxTradeSize)
	}

	if c.ArbMaxTradeSize < c.ArbMinTradeSize {
		return fmt.Errorf("ARB_MAX_TRADE_SIZE (%f) must be >= ARB_MIN_TRADE_SIZE (%f)",
			c.ArbMaxTradeSize, c.ArbMinTradeSize)
	}

	// Validate market filtering configuration
	if c.MaxMarketDuration < 0 {
		return fmt.Errorf("ARB_MAX_MARKET_DURATION must be non-negative (0 = unlimited), got %s", c.MaxMarketDuration)
	}

	if c.DiscoveryMarketLimit < 0 {
		return fmt.Errorf("DISCOVERY_MARKET_LIMIT must be non-negative (0 = unlimited), got %d", c.DiscoveryMarketLimit)
	}

	// Validate WebSocket pool configuration
	if c.WSPoolSize < 1 {
		return fmt.Errorf("WS_POOL_SIZE must be at least 1, got %d", c.WSPoolSize)
	}

	if c.WSPoolSize > 20 {
		return fmt.Errorf("WS_POOL_SIZE must not exceed 20, got %d", c.WSPoolSize)
	}

	// Validate cleanup configuration
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_CHECK_INTERVAL must be positive, got %s", c.CleanupInterval)
	}

	// Validate strategy configuration
	if len(c.StrategiesEnabled) == 0 {
		return errors.New("STRATEGIES_ENABLED must name at least one strategy")
	}

	if c.CombinatorialMaxIters <= 0 {
		return fmt.Errorf("STRATEGIES_COMBINATORIAL_MAX_ITERS must be positive, got %d", c.CombinatorialMaxIters)
	}

	// Validate cluster detection configuration
	if c.ClusterDebounceInterval <= 0 {
		return fmt.Errorf("CLUSTER_DETECTION_DEBOUNCE_INTERVAL must be positive, got %s", c.ClusterDebounceInterval)
	}

	if c.MaxClustersPerCycle <= 0 {
		return fmt.Errorf("CLUSTER_DETECTION_MAX_CLUSTERS_PER_CYCLE must be positive, got %d", c.MaxClustersPerCycle)
	}

	// Validate inference configuration
	if c.InferenceProvider != "openai" && c.InferenceProvider != "anthropic" {
		return fmt.Errorf("INFERENCE_PROVIDER must be 'openai' or 'anthropic', got %q", c.InferenceProvider)
	}

	if c.InferenceMinConfidence < 0 || c.InferenceMinConfidence > 1.0 {
		return fmt.Errorf("INFERENCE_MIN_CONFIDENCE must be between 0 and 1.0, got %f", c.InferenceMinConfidence)
	}

	if c.InferenceBatchSize <= 0 {
		return fmt.Errorf("INFERENCE_BATCH_SIZE must be positive, got %d", c.InferenceBatchSize)
	}

	// Validate risk configuration
	if c.RiskMaxTotalExposure <= 0 {
		return fmt.Errorf("RISK_MAX_TOTAL_EXPOSURE must be positive, got %f", c.RiskMaxTotalExposure)
	}

	if c.RiskExecutionTimeout <= 0 {
		return fmt.Errorf("RISK_EXECUTION_TIMEOUT must be positive, got %s", c.RiskExecutionTimeout)
	}

	// Validate reconnection configuration
	if c.WSReconnectJitterPercent < 0 || c.WSReconnectJitterPercent > 1.0 {
		return fmt.Errorf("RECONNECTION_JITTER_PERCENT must be between 0 and 1.0, got %f", c.WSReconnectJitterPercent)
	}

	return nil
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getFloat64OrDefault(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatVal, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatVal
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}
