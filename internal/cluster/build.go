package cluster

import (
	"fmt"
	"sort"

	"github.com/polyarb/polyarb/internal/solver"
	"github.com/polyarb/polyarb/pkg/types"
)

// MarketOutcomes resolves a market's outcome tokens in stable order.
// Relations constrain each market's primary outcome (index 0, the
// market's "yes"-equivalent) — the inferrer reasons about markets as
// correlated binary events, not individual outcome tokens, so the
// primary outcome is what a cross-market relation actually binds.
type MarketOutcomes func(types.MarketId) ([]OutcomeRef, bool)

// unionFind is a standard disjoint-set structure over market ids.
type unionFind struct {
	parent map[types.MarketId]types.MarketId
}

func newUnionFind() *unionFind {
	return &unionFind{parent: make(map[types.MarketId]types.MarketId)}
}

func (u *unionFind) find(m types.MarketId) types.MarketId {
	if _, ok := u.parent[m]; !ok {
		u.parent[m] = m
		return m
	}
	if u.parent[m] != m {
		u.parent[m] = u.find(u.parent[m])
	}
	return u.parent[m]
}

func (u *unionFind) union(a, b types.MarketId) {
	ra, rb := u.find(a), u.find(b)
	if ra != rb {
		u.parent[ra] = rb
	}
}

// Assemble groups markets connected by admitted relations into
// clusters via union-find, then builds each cluster's joint outcome
// vector and linear constraints. A cluster with a single market still
// appears in the result (callers degrade it to a no-op per the
// combinatorial strategy's contract); it keeps whatever constraints its
// single-market relations translate to.
func Assemble(relations []Relation, outcomes MarketOutcomes) []Cluster {
	uf := newUnionFind()
	byMarket := make(map[types.MarketId][]Relation)

	for _, rel := range relations {
		for _, m := range rel.MarketIDs {
			byMarket[m] = append(byMarket[m], rel)
		}
		for i := 1; i < len(rel.MarketIDs); i++ {
			uf.union(rel.MarketIDs[0], rel.MarketIDs[i])
		}
	}

	groups := make(map[types.MarketId][]types.MarketId)
	for m := range byMarket {
		root := uf.find(m)
		groups[root] = append(groups[root], m)
	}

	clusterIDs := make([]types.MarketId, 0, len(groups))
	for root := range groups {
		clusterIDs = append(clusterIDs, root)
	}
	sort.Slice(clusterIDs, func(i, j int) bool { return clusterIDs[i] < clusterIDs[j] })

	clusters := make([]Cluster, 0, len(groups))
	for _, root := range clusterIDs {
		markets := groups[root]
		sort.Slice(markets, func(i, j int) bool { return markets[i] < markets[j] })

		index := make(map[types.MarketId]int, len(markets))
		var refs []OutcomeRef
		for i, m := range markets {
			index[m] = i
			if o, ok := outcomes(m); ok && len(o) > 0 {
				refs = append(refs, o[0])
			}
		}

		seenRel := make(map[types.RelationId]bool)
		var relIDs []types.RelationId
		var constraints []solver.Constraint
		for _, m := range markets {
			for _, rel := range byMarket[m] {
				if seenRel[rel.ID] {
					continue
				}
				seenRel[rel.ID] = true
				relIDs = append(relIDs, rel.ID)
				if c, ok := constraintFor(rel, index); ok {
					constraints = append(constraints, c)
				}
			}
		}

		clusters = append(clusters, Cluster{
			ID:          types.ClusterId(fmt.Sprintf("cluster-%s", root)),
			MarketIDs:   markets,
			RelationIDs: relIDs,
			Outcomes:    refs,
			Constraints: constraints,
		})
	}
	return clusters
}

// constraintFor translates a relation into its linear constraint over
// the cluster's outcome-index coordinates.
func constraintFor(rel Relation, index map[types.MarketId]int) (solver.Constraint, bool) {
	k := len(index)
	coeffs := make([]float64, k)

	switch rel.Kind {
	case RelationMutuallyExclusive:
		for _, m := range rel.MarketIDs {
			coeffs[index[m]] = 1
		}
		return solver.Constraint{Coeffs: coeffs, Sense: solver.LessOrEqual, Bound: 1}, true

	case RelationExactlyOne:
		for _, m := range rel.MarketIDs {
			coeffs[index[m]] = 1
		}
		return solver.Constraint{Coeffs: coeffs, Sense: solver.Equal, Bound: 1}, true

	case RelationImplies:
		if len(rel.MarketIDs) != 2 {
			return solver.Constraint{}, false
		}
		// x_a <= x_b  <=>  x_a - x_b <= 0
		coeffs[index[rel.MarketIDs[0]]] = 1
		coeffs[index[rel.MarketIDs[1]]] = -1
		return solver.Constraint{Coeffs: coeffs, Sense: solver.LessOrEqual, Bound: 0}, true

	default:
		return solver.Constraint{}, false
	}
}
