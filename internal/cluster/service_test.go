package cluster

import (
	"testing"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

type fakeBooks struct {
	books map[types.TokenId]types.OrderBookSnapshot
}

func (f *fakeBooks) Snapshot(tokenID types.TokenId) (types.OrderBookSnapshot, bool) {
	s, ok := f.books[tokenID]
	return s, ok
}

func askSnapshot(t *testing.T, tokenID types.TokenId, price, size string) types.OrderBookSnapshot {
	t.Helper()
	p, err := types.NewPrice(price)
	if err != nil {
		t.Fatal(err)
	}
	v, err := types.NewVolume(size)
	if err != nil {
		t.Fatal(err)
	}
	return types.OrderBookSnapshot{TokenID: tokenID, Asks: []types.PriceLevel{{Price: p, Size: v}}}
}

func testServiceConfig() ServiceConfig {
	return ServiceConfig{
		DebounceInterval:          time.Hour,
		MaxClustersPerCycle:       10,
		CombinatorialMaxIters:     50,
		CombinatorialTolerance:    1e-6,
		CombinatorialGapThreshold: 0,
		TakerFee:                  types.PriceFromFloat(0),
	}
}

func TestMarkDirtyEnqueuesOwningCluster(t *testing.T) {
	c := newTestCache(t, "a", "b")
	now := time.Now()
	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9, InferredAt: now},
	}, now)
	clusterID, ok := c.ClusterForMarket("a")
	if !ok {
		t.Fatal("expected a cluster for market a")
	}

	svc := NewService(c, &fakeBooks{}, nil, testServiceConfig(), zap.NewNop())
	svc.MarkDirty("a")

	batch := svc.drainDirty(10)
	if len(batch) != 1 || batch[0] != clusterID {
		t.Fatalf("expected dirty batch [%s], got %+v", clusterID, batch)
	}
}

func TestMarkDirtyIgnoresMarketWithoutCluster(t *testing.T) {
	c := newTestCache(t, "a")
	svc := NewService(c, &fakeBooks{}, nil, testServiceConfig(), zap.NewNop())
	svc.MarkDirty("unknown")

	if batch := svc.drainDirty(10); len(batch) != 0 {
		t.Fatalf("expected no dirty clusters, got %+v", batch)
	}
}

func TestDrainDirtyRespectsLimitAndLeavesRemainder(t *testing.T) {
	c := newTestCache(t, "a", "b", "c", "d")
	now := time.Now()
	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9, InferredAt: now},
		{ID: "r2", Kind: RelationImplies, MarketIDs: []types.MarketId{"c", "d"}, Confidence: 0.9, InferredAt: now},
	}, now)

	svc := NewService(c, &fakeBooks{}, nil, testServiceConfig(), zap.NewNop())
	svc.MarkDirty("a")
	svc.MarkDirty("c")

	first := svc.drainDirty(1)
	if len(first) != 1 {
		t.Fatalf("expected exactly 1 cluster drained, got %d", len(first))
	}
	second := svc.drainDirty(10)
	if len(second) != 1 {
		t.Fatalf("expected the remaining cluster drained on the next call, got %d", len(second))
	}
	if first[0] == second[0] {
		t.Fatalf("expected two distinct clusters across both drains, got %s twice", first[0])
	}
}

func TestEvaluateEmitsOpportunityForInfeasibleBasket(t *testing.T) {
	c := newTestCache(t, "a", "b", "c")
	now := time.Now()
	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b", "c"}, Confidence: 0.9, InferredAt: now},
	}, now)
	clusterID, ok := c.ClusterForMarket("a")
	if !ok {
		t.Fatal("expected a cluster for market a")
	}

	books := &fakeBooks{books: map[types.TokenId]types.OrderBookSnapshot{
		"tok-a": askSnapshot(t, "tok-a", "0.4", "100"),
		"tok-b": askSnapshot(t, "tok-b", "0.4", "100"),
		"tok-c": askSnapshot(t, "tok-c", "0.4", "100"),
	}}

	var sunk *types.Opportunity
	sink := func(o *types.Opportunity) { sunk = o }

	svc := NewService(c, books, sink, testServiceConfig(), zap.NewNop())
	svc.evaluate(clusterID)

	if sunk == nil {
		t.Fatal("expected an opportunity for a basket priced above its $1 payout")
	}
	if sunk.ClusterID != clusterID {
		t.Fatalf("expected opportunity tagged with cluster %s, got %s", clusterID, sunk.ClusterID)
	}

	svc.warmMu.Lock()
	_, warmed := svc.warm[clusterID]
	svc.warmMu.Unlock()
	if !warmed {
		t.Fatal("expected a warm-start vector to be saved after evaluation")
	}
}

func TestEvaluateSkipsWhenABookIsMissing(t *testing.T) {
	c := newTestCache(t, "a", "b", "c")
	now := time.Now()
	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b", "c"}, Confidence: 0.9, InferredAt: now},
	}, now)
	clusterID, _ := c.ClusterForMarket("a")

	books := &fakeBooks{books: map[types.TokenId]types.OrderBookSnapshot{
		"tok-a": askSnapshot(t, "tok-a", "0.4", "100"),
	}}

	called := false
	sink := func(*types.Opportunity) { called = true }

	svc := NewService(c, books, sink, testServiceConfig(), zap.NewNop())
	svc.evaluate(clusterID)

	if called {
		t.Fatal("expected no opportunity when a member token's book is missing")
	}
}

func TestEvaluateSkipsStaleBook(t *testing.T) {
	c := newTestCache(t, "a", "b")
	now := time.Now()
	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9, InferredAt: now},
	}, now)
	clusterID, _ := c.ClusterForMarket("a")

	staleA := askSnapshot(t, "tok-a", "0.4", "100")
	staleA.Stale = true
	books := &fakeBooks{books: map[types.TokenId]types.OrderBookSnapshot{
		"tok-a": staleA,
		"tok-b": askSnapshot(t, "tok-b", "0.4", "100"),
	}}

	called := false
	sink := func(*types.Opportunity) { called = true }

	svc := NewService(c, books, sink, testServiceConfig(), zap.NewNop())
	svc.evaluate(clusterID)

	if called {
		t.Fatal("expected no opportunity while a member token's book is stale")
	}
}

func TestEvaluateSkipsSingleMarketCluster(t *testing.T) {
	c := newTestCache(t, "solo")

	c.mu.Lock()
	c.clusters["solo-cluster"] = Cluster{ID: "solo-cluster", MarketIDs: []types.MarketId{"solo"}}
	c.byMarket["solo"] = "solo-cluster"
	c.mu.Unlock()

	called := false
	sink := func(*types.Opportunity) { called = true }

	svc := NewService(c, &fakeBooks{}, sink, testServiceConfig(), zap.NewNop())
	svc.evaluate("solo-cluster")

	if called {
		t.Fatal("expected a single-market cluster to degrade to a no-op")
	}
}
