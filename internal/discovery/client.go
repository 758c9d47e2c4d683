package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// Client is an HTTP client for the Polymarket Gamma API, the
// MarketFetcher implementation shipped by this module.
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a new Gamma API client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "polyarb/1.0"),
		logger: logger,
	}
}

// MaxBatchSize is the largest page the Gamma API is asked for in a
// single request. Limits above this (or limit == 0, meaning "all") are
// served by repeated requests.
const MaxBatchSize = 100

// FetchActiveMarkets fetches active markets from the Gamma API,
// paginating transparently when limit exceeds MaxBatchSize or is 0
// (fetch everything available from offset onward).
// orderBy specifies the field to sort by: "volume24hr", "createdAt", or "endDate".
func (c *Client) FetchActiveMarkets(ctx context.Context, limit int, offset int, orderBy string) (*types.MarketsResponse, error) {
	fetchAll := limit <= 0
	remaining := limit
	currentOffset := offset

	var all []types.Market
	for {
		batchLimit := MaxBatchSize
		if !fetchAll && remaining < MaxBatchSize {
			batchLimit = remaining
		}

		page, err := c.fetchPage(ctx, batchLimit, currentOffset, orderBy)
		if err != nil {
			return nil, err
		}

		all = append(all, page...)
		currentOffset += len(page)
		if !fetchAll {
			remaining -= len(page)
		}

		if len(page) < batchLimit {
			break
		}
		if !fetchAll && remaining <= 0 {
			break
		}
	}

	return &types.MarketsResponse{
		Data:   all,
		Count:  len(all),
		Limit:  limit,
		Offset: offset,
	}, nil
}

// fetchPage performs a single Gamma API request.
func (c *Client) fetchPage(ctx context.Context, limit int, offset int, orderBy string) ([]types.Market, error) {
	ascending := "false"
	if orderBy == "endDate" {
		ascending = "true"
	}

	c.logger.Debug("fetching-markets",
		zap.Int("limit", limit),
		zap.Int("offset", offset),
		zap.String("order-by", orderBy))

	var markets []types.Market
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"closed":    "false",
			"active":    "true",
			"limit":     fmt.Sprintf("%d", limit),
			"offset":    fmt.Sprintf("%d", offset),
			"order":     orderBy,
			"ascending": ascending,
		}).
		SetResult(&markets).
		Get("/markets")
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("unexpected status code %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.Debug("fetched-markets", zap.Int("count", len(markets)))

	return markets, nil
}

// FetchMarketBySlug fetches a single market by its slug.
// The Gamma API doesn't support /markets/{slug}, only /markets/{id}, so
// this paginates through the markets list to find the matching slug.
func (c *Client) FetchMarketBySlug(ctx context.Context, slug string) (*types.Market, error) {
	limit := 100
	offset := 0
	maxPages := 10 // search up to 1000 markets

	for page := 0; page < maxPages; page++ {
		resp, err := c.FetchActiveMarkets(ctx, limit, offset, "volume24hr")
		if err != nil {
			return nil, fmt.Errorf("fetch markets: %w", err)
		}

		for i := range resp.Data {
			if resp.Data[i].Slug == slug {
				return &resp.Data[i], nil
			}
		}

		if len(resp.Data) < limit {
			break
		}

		offset += limit
	}

	return nil, fmt.Errorf("market not found: %s", slug)
}
