package markets

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/cache"
	"github.com/polyarb/polyarb/pkg/types"
)

func newTestRistretto(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     1 << 20,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("Failed to create cache: %v", err)
	}
	return c
}

func TestCachedMetadataClient_GetTokenMetadata_WithCache(t *testing.T) {
	mockCache := newTestRistretto(t)
	defer mockCache.Close()

	mockClient := NewMetadataClientWithConfig(MetadataClientConfig{BaseURL: "http://mock-server"})

	cachedClient := NewCachedMetadataClient(mockClient, mockCache)

	if cachedClient == nil {
		t.Fatal("Expected non-nil cached client")
	}

	if cachedClient.ttl != 24*time.Hour {
		t.Errorf("Expected TTL of 24h, got %v", cachedClient.ttl)
	}

	testTokenID := "test-token-123"
	metadata := &TokenMetadata{
		TickSize:     mustPrice(t, "0.001"),
		MinOrderSize: mustVolume(t, "10"),
		FetchedAt:    time.Now(),
	}

	cacheKey := "metadata:test-token-123"
	mockCache.Set(cacheKey, metadata, 24*time.Hour)
	if rc, ok := mockCache.(*cache.RistrettoCache); ok {
		rc.Wait()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tickSize, minSize, err := cachedClient.GetTokenMetadata(ctx, testTokenID)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if tickSize.Float64() != 0.001 {
		t.Errorf("Expected tick size 0.001, got %.4f", tickSize.Float64())
	}

	if minSize.Float64() != 10.0 {
		t.Errorf("Expected min size 10.0, got %.2f", minSize.Float64())
	}
}

func TestCachedMetadataClient_GetTokenMetadata_NilCache(t *testing.T) {
	mockClient := NewMetadataClientWithConfig(MetadataClientConfig{BaseURL: "http://mock-server"})

	cachedClient := NewCachedMetadataClient(mockClient, nil)

	if cachedClient == nil {
		t.Fatal("Expected non-nil cached client")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Should not panic with nil cache, even though it hits a fake URL.
	_, _, err := cachedClient.GetTokenMetadata(ctx, "test-token")
	if err == nil {
		t.Log("Unexpectedly succeeded with mock URL")
	}
}

func TestCachedMetadataClient_CacheKey(t *testing.T) {
	mockCache := newTestRistretto(t)
	defer mockCache.Close()

	mockClient := NewMetadataClientWithConfig(MetadataClientConfig{BaseURL: "http://mock-server"})
	cachedClient := NewCachedMetadataClient(mockClient, mockCache)

	testTokenID := "86076435890279485031516158085782"
	expectedKey := "metadata:86076435890279485031516158085782"

	metadata := &TokenMetadata{
		TickSize:     mustPrice(t, "0.01"),
		MinOrderSize: mustVolume(t, "5"),
		FetchedAt:    time.Now(),
	}

	mockCache.Set(expectedKey, metadata, 24*time.Hour)
	if rc, ok := mockCache.(*cache.RistrettoCache); ok {
		rc.Wait()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tickSize, minSize, err := cachedClient.GetTokenMetadata(ctx, testTokenID)

	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if tickSize.Float64() != 0.01 {
		t.Errorf("Cache key mismatch: expected tick size 0.01, got %.4f", tickSize.Float64())
	}

	if minSize.Float64() != 5.0 {
		t.Errorf("Cache key mismatch: expected min size 5.0, got %.2f", minSize.Float64())
	}
}

func TestTokenMetadata_Structure(t *testing.T) {
	metadata := TokenMetadata{
		TickSize:     mustPrice(t, "0.001"),
		MinOrderSize: mustVolume(t, "100"),
		FetchedAt:    time.Now(),
	}

	if metadata.TickSize.Float64() != 0.001 {
		t.Errorf("Expected TickSize 0.001, got %.4f", metadata.TickSize.Float64())
	}

	if metadata.MinOrderSize.Float64() != 100.0 {
		t.Errorf("Expected MinOrderSize 100.0, got %.2f", metadata.MinOrderSize.Float64())
	}

	if metadata.FetchedAt.IsZero() {
		t.Error("Expected FetchedAt to be set")
	}
}

func TestNewCachedMetadataClient(t *testing.T) {
	mockCache := newTestRistretto(t)
	defer mockCache.Close()

	mockClient := NewMetadataClientWithConfig(MetadataClientConfig{BaseURL: "http://test"})

	cachedClient := NewCachedMetadataClient(mockClient, mockCache)

	if cachedClient == nil {
		t.Fatal("Expected non-nil cached client")
	}

	if cachedClient.client != mockClient {
		t.Error("Expected client to be set correctly")
	}

	if cachedClient.cache != mockCache {
		t.Error("Expected cache to be set correctly")
	}

	if cachedClient.ttl != 24*time.Hour {
		t.Errorf("Expected default TTL of 24h, got %v", cachedClient.ttl)
	}
}

func mustPrice(t *testing.T, s string) types.Price {
	t.Helper()
	p, err := types.NewPrice(s)
	if err != nil {
		t.Fatalf("NewPrice(%q): %v", s, err)
	}
	return p
}

func mustVolume(t *testing.T, s string) types.Volume {
	t.Helper()
	v, err := types.NewVolume(s)
	if err != nil {
		t.Fatalf("NewVolume(%q): %v", s, err)
	}
	return v
}
