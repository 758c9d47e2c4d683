package cluster

import (
	"testing"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T, markets ...types.MarketId) *Cache {
	t.Helper()
	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	return New(outcomesFor(markets...), logger)
}

func TestPutRelationsBuildsClusterForConnectedMarkets(t *testing.T) {
	c := newTestCache(t, "a", "b")
	now := time.Now()

	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9, InferredAt: now},
	}, now)

	id, ok := c.ClusterForMarket("a")
	if !ok {
		t.Fatal("expected market a to belong to a cluster")
	}
	cl, ok := c.Cluster(id)
	if !ok {
		t.Fatal("expected cluster to resolve by id")
	}
	if len(cl.MarketIDs) != 2 {
		t.Fatalf("expected 2 markets in cluster, got %+v", cl.MarketIDs)
	}
	bID, ok := c.ClusterForMarket("b")
	if !ok || bID != id {
		t.Fatalf("expected market b in same cluster as a, got %v (ok=%v)", bID, ok)
	}
}

func TestPurgeDropsExpiredRelationsAndRebuilds(t *testing.T) {
	c := newTestCache(t, "a", "b")
	now := time.Now()

	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9,
			InferredAt: now, ExpiresAt: now.Add(time.Hour)},
	}, now)

	if _, ok := c.ClusterForMarket("a"); !ok {
		t.Fatal("expected cluster to exist before expiry")
	}

	c.Purge(now.Add(2 * time.Hour))

	if _, ok := c.ClusterForMarket("a"); ok {
		t.Fatal("expected cluster to be gone after its only relation expired")
	}
	if len(c.AllClusters()) != 0 {
		t.Fatalf("expected no clusters left after purge, got %d", len(c.AllClusters()))
	}
}

func TestPutRelationsDefaultsExpiryFromInferredAt(t *testing.T) {
	c := newTestCache(t, "a", "b")
	now := time.Now()

	c.PutRelations([]Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9, InferredAt: now},
	}, now)

	c.mu.RLock()
	r := c.relations["r1"]
	c.mu.RUnlock()

	if !r.ExpiresAt.Equal(now.Add(relationTTL)) {
		t.Fatalf("expected default expiry of inferredAt+%s, got %v", relationTTL, r.ExpiresAt)
	}
}

func TestResolveContradictionsKeepsHighestConfidenceOnKindConflict(t *testing.T) {
	now := time.Now()
	relations := []Relation{
		{ID: "low", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.6, InferredAt: now},
		{ID: "high", Kind: RelationImplies, MarketIDs: []types.MarketId{"b", "a"}, Confidence: 0.95, InferredAt: now},
	}

	resolved := resolveContradictions(relations)
	if len(resolved) != 1 {
		t.Fatalf("expected exactly 1 relation to survive the conflict, got %d: %+v", len(resolved), resolved)
	}
	if resolved[0].ID != "high" {
		t.Fatalf("expected the higher-confidence relation to survive, got %s", resolved[0].ID)
	}
}

func TestResolveContradictionsTieBreaksOnLatestInferredAt(t *testing.T) {
	now := time.Now()
	relations := []Relation{
		{ID: "older", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.8, InferredAt: now},
		{ID: "newer", Kind: RelationExactlyOne, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.8, InferredAt: now.Add(time.Minute)},
	}

	resolved := resolveContradictions(relations)
	if len(resolved) != 1 {
		t.Fatalf("expected exactly 1 relation to survive the tie, got %d: %+v", len(resolved), resolved)
	}
	if resolved[0].ID != "newer" {
		t.Fatalf("expected the later-inferred relation to win the tie, got %s", resolved[0].ID)
	}
}

func TestResolveContradictionsKeepsBothWhenKindsMatch(t *testing.T) {
	now := time.Now()
	relations := []Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.7, InferredAt: now},
		{ID: "r2", Kind: RelationImplies, MarketIDs: []types.MarketId{"b", "a"}, Confidence: 0.9, InferredAt: now},
	}

	resolved := resolveContradictions(relations)
	if len(resolved) != 2 {
		t.Fatalf("expected both same-kind relations over the same market set to survive, got %d: %+v", len(resolved), resolved)
	}
}

func TestResolveContradictionsLeavesDisjointMarketSetsAlone(t *testing.T) {
	now := time.Now()
	relations := []Relation{
		{ID: "r1", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.7, InferredAt: now},
		{ID: "r2", Kind: RelationExactlyOne, MarketIDs: []types.MarketId{"c", "d"}, Confidence: 0.9, InferredAt: now},
	}

	resolved := resolveContradictions(relations)
	if len(resolved) != 2 {
		t.Fatalf("expected unrelated market sets to both survive untouched, got %d: %+v", len(resolved), resolved)
	}
}

func TestMarketSetKeyIsOrderIndependent(t *testing.T) {
	a := marketSetKey([]types.MarketId{"x", "y", "z"})
	b := marketSetKey([]types.MarketId{"z", "x", "y"})
	if a != b {
		t.Fatalf("expected order-independent key, got %q vs %q", a, b)
	}
}

func TestPutRelationsResolvesConflictBeforeAssembly(t *testing.T) {
	c := newTestCache(t, "a", "b")
	now := time.Now()

	c.PutRelations([]Relation{
		{ID: "low", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.5, InferredAt: now},
		{ID: "high", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.95, InferredAt: now},
	}, now)

	id, ok := c.ClusterForMarket("a")
	if !ok {
		t.Fatal("expected a cluster to be assembled from the surviving relation")
	}
	cl, _ := c.Cluster(id)
	if len(cl.RelationIDs) != 1 || cl.RelationIDs[0] != "high" {
		t.Fatalf("expected only the higher-confidence relation to back the cluster, got %+v", cl.RelationIDs)
	}
	if len(cl.Constraints) != 1 {
		t.Fatalf("expected 1 constraint from the surviving implies relation, got %+v", cl.Constraints)
	}
}
