package markets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// MetadataClient fetches market metadata from the Polymarket CLOB API.
type MetadataClient struct {
	http              *resty.Client
	maxRetries        int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
	logger            *zap.Logger
}

// MetadataClientConfig holds configuration for MetadataClient.
type MetadataClientConfig struct {
	BaseURL           string
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	BackoffMultiplier float64
	Logger            *zap.Logger
}

// NewMetadataClient creates a new metadata client with default retry configuration.
func NewMetadataClient() *MetadataClient {
	return NewMetadataClientWithConfig(MetadataClientConfig{
		MaxRetries:        3,
		InitialBackoff:    500 * time.Millisecond,
		MaxBackoff:        5 * time.Second,
		BackoffMultiplier: 2.0,
		Logger:            zap.NewNop(),
	})
}

// NewMetadataClientWithConfig creates a new metadata client with custom configuration.
func NewMetadataClientWithConfig(cfg MetadataClientConfig) *MetadataClient {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	if cfg.InitialBackoff == 0 {
		cfg.InitialBackoff = 500 * time.Millisecond
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 5 * time.Second
	}
	if cfg.BackoffMultiplier == 0 {
		cfg.BackoffMultiplier = 2.0
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://clob.polymarket.com"
	}

	return &MetadataClient{
		http:              resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(10 * time.Second),
		maxRetries:        cfg.MaxRetries,
		initialBackoff:    cfg.InitialBackoff,
		maxBackoff:        cfg.MaxBackoff,
		backoffMultiplier: cfg.BackoffMultiplier,
		logger:            cfg.Logger,
	}
}

// isRetryable determines if an error should trigger a retry.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}

	errMsg := strings.ToLower(err.Error())

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if strings.Contains(errMsg, "429") {
		return true
	}
	if strings.Contains(errMsg, "500") {
		return true
	}
	if strings.Contains(errMsg, "502") {
		return true
	}
	if strings.Contains(errMsg, "503") {
		return true
	}
	if strings.Contains(errMsg, "timeout") {
		return true
	}
	if strings.Contains(errMsg, "connection refused") {
		return true
	}
	if strings.Contains(errMsg, "connection reset") {
		return true
	}

	return false
}

// fetchWithRetry wraps an HTTP fetch operation with retry logic.
func (c *MetadataClient) fetchWithRetry(ctx context.Context, operation string, fetchFn func() error) error {
	backoff := c.initialBackoff

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		err := fetchFn()

		if err == nil {
			return nil
		}

		if !isRetryable(err) {
			return err
		}

		if attempt == c.maxRetries {
			return fmt.Errorf("max retries (%d) exceeded for %s: %w", c.maxRetries, operation, err)
		}

		c.logger.Warn("metadata-fetch-failed-retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt+1),
			zap.Int("max-retries", c.maxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		backoff = time.Duration(float64(backoff) * c.backoffMultiplier)
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}

	return fmt.Errorf("unreachable")
}

// FetchTickSize fetches tick size for a token from the CLOB API with retry logic.
func (c *MetadataClient) FetchTickSize(ctx context.Context, tokenID string) (tickSize types.Price, err error) {
	err = c.fetchWithRetry(ctx, "fetch-tick-size", func() error {
		var data struct {
			MinimumTickSize float64 `json:"minimum_tick_size"`
		}
		resp, reqErr := c.http.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&data).
			Get("/tick-size")
		if reqErr != nil {
			return reqErr
		}
		if resp.IsError() {
			return fmt.Errorf("API error: status %d", resp.StatusCode())
		}
		tickSize = types.PriceFromFloat(data.MinimumTickSize)
		return nil
	})

	return tickSize, err
}

// FetchMinOrderSize fetches minimum order size for a token with retry logic.
// Tries the orderbook endpoint to find this value.
func (c *MetadataClient) FetchMinOrderSize(ctx context.Context, tokenID string) (minOrderSize types.Volume, err error) {
	minOrderSize = types.VolumeFromFloat(5.0)

	err = c.fetchWithRetry(ctx, "fetch-min-order-size", func() error {
		var data struct {
			MinSize float64 `json:"min_size"`
			Market  struct {
				MinSize float64 `json:"minimum_order_size"`
			} `json:"market"`
		}
		resp, reqErr := c.http.R().
			SetContext(ctx).
			SetQueryParam("token_id", tokenID).
			SetResult(&data).
			Get("/book")
		if reqErr != nil {
			return reqErr
		}
		if resp.IsError() {
			return nil
		}

		if data.MinSize > 0 {
			minOrderSize = types.VolumeFromFloat(data.MinSize)
		} else if data.Market.MinSize > 0 {
			minOrderSize = types.VolumeFromFloat(data.Market.MinSize)
		}
		return nil
	})

	return minOrderSize, nil
}

// FetchTokenMetadata fetches both tick size and min order size for a token.
func (c *MetadataClient) FetchTokenMetadata(ctx context.Context, tokenID string) (tickSize types.Price, minOrderSize types.Volume, err error) {
	start := time.Now()
	defer func() {
		MetadataFetchDuration.Observe(time.Since(start).Seconds())
	}()

	tickSize, err = c.FetchTickSize(ctx, tokenID)
	if err != nil {
		MetadataFetchErrorsTotal.Inc()
		tickSize = types.PriceFromFloat(0.01)
	}

	minOrderSize, err = c.FetchMinOrderSize(ctx, tokenID)
	if err != nil {
		MetadataFetchErrorsTotal.Inc()
		minOrderSize = types.VolumeFromFloat(5.0)
	}

	return tickSize, minOrderSize, nil
}
