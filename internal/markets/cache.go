package markets

import (
	"context"
	"fmt"
	"time"

	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/cache"
	"github.com/polyarb/polyarb/pkg/types"
)

// CachedMetadataClient wraps MetadataClient with caching.
type CachedMetadataClient struct {
	client *MetadataClient
	cache  cache.Cache
	ttl    time.Duration
}

// NewCachedMetadataClient creates a new cached metadata client.
func NewCachedMetadataClient(client *MetadataClient, cache cache.Cache) *CachedMetadataClient {
	return &CachedMetadataClient{
		client: client,
		cache:  cache,
		ttl:    24 * time.Hour,
	}
}

// TokenMetadata holds cached metadata for a token.
type TokenMetadata struct {
	TickSize     types.Price
	MinOrderSize types.Volume
	FetchedAt    time.Time
}

// GetTokenMetadata fetches token metadata with caching.
func (c *CachedMetadataClient) GetTokenMetadata(ctx context.Context, tokenID string) (tickSize types.Price, minOrderSize types.Volume, err error) {
	if c.cache != nil {
		cacheKey := fmt.Sprintf("metadata:%s", tokenID)
		if cached, ok := c.cache.Get(cacheKey); ok {
			if meta, ok := cached.(*TokenMetadata); ok {
				MetadataCacheHitsTotal.Inc()
				return meta.TickSize, meta.MinOrderSize, nil
			}
		}
		MetadataCacheMissesTotal.Inc()
	}

	tickSize, minOrderSize, err = c.client.FetchTokenMetadata(ctx, tokenID)
	if err != nil {
		return tickSize, minOrderSize, err
	}

	if c.cache != nil {
		meta := &TokenMetadata{
			TickSize:     tickSize,
			MinOrderSize: minOrderSize,
			FetchedAt:    time.Now(),
		}
		cacheKey := fmt.Sprintf("metadata:%s", tokenID)
		c.cache.Set(cacheKey, meta, c.ttl)
	}

	return tickSize, minOrderSize, nil
}

// UpdateTickSize updates the tick size for a token in the cache without
// refetching from the API. Called when a tick_size_change stream event
// arrives. A no-op if the token isn't cached yet; it will be fetched
// fresh on next access.
func (c *CachedMetadataClient) UpdateTickSize(tokenID string, newTickSize types.Price) {
	if c.cache == nil {
		return
	}

	cacheKey := fmt.Sprintf("metadata:%s", tokenID)

	if cached, ok := c.cache.Get(cacheKey); ok {
		if meta, ok := cached.(*TokenMetadata); ok {
			updatedMeta := &TokenMetadata{
				TickSize:     newTickSize,
				MinOrderSize: meta.MinOrderSize,
				FetchedAt:    time.Now(),
			}
			c.cache.Set(cacheKey, updatedMeta, c.ttl)
		}
	}
}

// Cache is the read surface the rest of the system depends on for a
// token's tick size, minimum order size and best bid: it bridges the
// HTTP-backed CachedMetadataClient with the order book's live best bid,
// satisfying execution.MarketMetadata without execution importing
// either concrete type.
type Cache struct {
	metadata *CachedMetadataClient
	books    *orderbook.Cache
}

// NewCache builds a Cache over a metadata client and the order book
// cache that tracks live best bid/ask per token.
func NewCache(metadata *CachedMetadataClient, books *orderbook.Cache) *Cache {
	return &Cache{metadata: metadata, books: books}
}

// TickSize returns the last-known tick size for tokenID, fetching and
// caching it on first use. Falls back to the standard 1-cent tick on
// fetch failure rather than blocking the caller with an error return,
// matching FetchTokenMetadata's own default-on-error behavior.
func (c *Cache) TickSize(tokenID types.TokenId) types.Price {
	tick, _, err := c.metadata.GetTokenMetadata(context.Background(), string(tokenID))
	if err != nil {
		return types.PriceFromFloat(0.01)
	}
	return tick
}

// MinOrderSize returns the last-known minimum order size for tokenID.
func (c *Cache) MinOrderSize(tokenID types.TokenId) types.Volume {
	_, minSize, err := c.metadata.GetTokenMetadata(context.Background(), string(tokenID))
	if err != nil {
		return types.VolumeFromFloat(5.0)
	}
	return minSize
}

// BestBid returns the current best bid price for tokenID from the live
// order book, and false if the book hasn't been populated yet or has no
// bid side.
func (c *Cache) BestBid(tokenID types.TokenId) (types.Price, bool) {
	snap, ok := c.books.Snapshot(tokenID)
	if !ok || snap.Stale {
		return types.ZeroPrice, false
	}
	level, ok := snap.BestBid()
	if !ok {
		return types.ZeroPrice, false
	}
	return level.Price, true
}
