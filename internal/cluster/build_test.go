package cluster

import (
	"testing"
	"time"

	"github.com/polyarb/polyarb/internal/solver"
	"github.com/polyarb/polyarb/pkg/types"
)

func outcomesFor(markets ...types.MarketId) MarketOutcomes {
	return func(m types.MarketId) ([]OutcomeRef, bool) {
		for _, id := range markets {
			if id == m {
				return []OutcomeRef{{TokenID: types.TokenId("tok-" + string(id)), MarketID: id, Outcome: "Yes"}}, true
			}
		}
		return nil, false
	}
}

func TestAssembleUnionFindJoinsTransitivelyRelatedMarkets(t *testing.T) {
	now := time.Now()
	relations := []Relation{
		{ID: "r1", Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b"}, Confidence: 0.9, InferredAt: now},
		{ID: "r2", Kind: RelationImplies, MarketIDs: []types.MarketId{"b", "c"}, Confidence: 0.9, InferredAt: now},
		{ID: "r3", Kind: RelationMutuallyExclusive, MarketIDs: []types.MarketId{"x", "y"}, Confidence: 0.9, InferredAt: now},
	}

	clusters := Assemble(relations, outcomesFor("a", "b", "c", "x", "y"))
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters (a-b-c joined, x-y separate), got %d: %+v", len(clusters), clusters)
	}

	var abc, xy *Cluster
	for i := range clusters {
		switch len(clusters[i].MarketIDs) {
		case 3:
			abc = &clusters[i]
		case 2:
			xy = &clusters[i]
		}
	}
	if abc == nil {
		t.Fatalf("expected a 3-market cluster joining a, b, c via transitivity, got %+v", clusters)
	}
	if xy == nil {
		t.Fatalf("expected a 2-market cluster for x, y, got %+v", clusters)
	}
	if len(abc.RelationIDs) != 2 {
		t.Fatalf("expected cluster a-b-c to carry both implies relations, got %+v", abc.RelationIDs)
	}
	if len(abc.Constraints) != 2 {
		t.Fatalf("expected 2 constraints on cluster a-b-c, got %d", len(abc.Constraints))
	}
}

func TestAssembleExactlyOneBuildsSingleEqualityCluster(t *testing.T) {
	now := time.Now()
	relations := []Relation{
		{ID: "r1", Kind: RelationExactlyOne, MarketIDs: []types.MarketId{"m1", "m2", "m3"}, Confidence: 0.8, InferredAt: now},
	}

	clusters := Assemble(relations, outcomesFor("m1", "m2", "m3"))
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if len(clusters[0].MarketIDs) != 3 {
		t.Fatalf("expected all 3 markets in the single exactly_one cluster, got %+v", clusters[0].MarketIDs)
	}
	if len(clusters[0].Constraints) != 1 || clusters[0].Constraints[0].Sense != solver.Equal {
		t.Fatalf("expected a single equality constraint for exactly_one, got %+v", clusters[0].Constraints)
	}
	if clusters[0].Constraints[0].Bound != 1 {
		t.Fatalf("expected exactly_one constraint bound of 1, got %v", clusters[0].Constraints[0].Bound)
	}
}

func TestConstraintForImpliesRequiresExactlyTwoMarkets(t *testing.T) {
	rel := Relation{Kind: RelationImplies, MarketIDs: []types.MarketId{"a", "b", "c"}}
	index := map[types.MarketId]int{"a": 0, "b": 1, "c": 2}

	if _, ok := constraintFor(rel, index); ok {
		t.Fatal("expected implies with 3 markets to be rejected, it is only defined for exactly 2")
	}
}
