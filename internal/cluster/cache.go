package cluster

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// relationTTL bounds how long an inferred relation is trusted before
// it is purged and the inferrer must reassert it on the next refresh.
const relationTTL = 24 * time.Hour

// Cache stores Relations and derives Clusters from the surviving
// relation set, matching the spec's ownership rule: ClusterCache
// exclusively owns Cluster objects, everything else only reads them.
type Cache struct {
	mu        sync.RWMutex
	relations map[types.RelationId]Relation
	clusters  map[types.ClusterId]Cluster
	byMarket  map[types.MarketId]types.ClusterId
	outcomes  MarketOutcomes
	logger    *zap.Logger
}

func New(outcomes MarketOutcomes, logger *zap.Logger) *Cache {
	return &Cache{
		relations: make(map[types.RelationId]Relation),
		clusters:  make(map[types.ClusterId]Cluster),
		byMarket:  make(map[types.MarketId]types.ClusterId),
		outcomes:  outcomes,
		logger:    logger,
	}
}

// PutRelations admits a batch of relations (overwriting any existing
// relation with the same id) and rebuilds clusters from the surviving
// set. Called by the inferrer after startup and on each refresh.
func (c *Cache) PutRelations(relations []Relation, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, r := range relations {
		if r.ExpiresAt.IsZero() {
			r.ExpiresAt = r.InferredAt.Add(relationTTL)
		}
		c.relations[r.ID] = r
	}
	c.rebuildLocked(now)
}

// Purge drops expired relations and rebuilds clusters if anything was
// removed. The lookups (Cluster, ClusterForMarket, AllClusters) do not
// call it: an expired relation keeps backing its cluster until Purge
// runs or the next PutRelations rebuild drops it.
func (c *Cache) Purge(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for id, r := range c.relations {
		if r.Expired(now) {
			delete(c.relations, id)
			changed = true
			RelationsExpiredTotal.Inc()
		}
	}
	if changed {
		c.rebuildLocked(now)
	}
}

func (c *Cache) rebuildLocked(now time.Time) {
	live := make([]Relation, 0, len(c.relations))
	for id, r := range c.relations {
		if r.Expired(now) {
			delete(c.relations, id)
			continue
		}
		live = append(live, r)
	}

	live = resolveContradictions(live)

	clusters := Assemble(live, c.outcomes)
	c.clusters = make(map[types.ClusterId]Cluster, len(clusters))
	c.byMarket = make(map[types.MarketId]types.ClusterId, len(clusters))
	for _, cl := range clusters {
		cl.UpdatedAt = now
		c.clusters[cl.ID] = cl
		for _, m := range cl.MarketIDs {
			c.byMarket[m] = cl.ID
		}
	}
	ClustersTracked.Set(float64(len(clusters)))
	c.logger.Debug("clusters-rebuilt", zap.Int("relations", len(live)), zap.Int("clusters", len(clusters)))
}

// resolveContradictions keeps at most one relation per distinct
// market-set whenever that set has live relations of more than one
// Kind asserted over it (e.g. one relation implying A -> B and another
// asserting A and B mutually exclusive): higher confidence wins, and
// equal confidence takes the later inferred_at. Relations that share a
// market-set and Kind are not in conflict and both survive.
func resolveContradictions(relations []Relation) []Relation {
	bySet := make(map[string][]Relation, len(relations))
	for _, r := range relations {
		key := marketSetKey(r.MarketIDs)
		bySet[key] = append(bySet[key], r)
	}

	resolved := make([]Relation, 0, len(relations))
	for _, group := range bySet {
		kinds := make(map[RelationKind]bool, len(group))
		for _, r := range group {
			kinds[r.Kind] = true
		}
		if len(kinds) <= 1 {
			resolved = append(resolved, group...)
			continue
		}

		best := group[0]
		for _, r := range group[1:] {
			if r.Confidence > best.Confidence ||
				(r.Confidence == best.Confidence && r.InferredAt.After(best.InferredAt)) {
				best = r
			}
		}
		resolved = append(resolved, best)
		RelationConflictsResolvedTotal.Add(float64(len(group) - 1))
	}
	return resolved
}

// marketSetKey canonicalizes a relation's market ids into a
// set-comparison key independent of input order.
func marketSetKey(ids []types.MarketId) string {
	sorted := make([]string, len(ids))
	for i, id := range ids {
		sorted[i] = string(id)
	}
	sort.Strings(sorted)
	return strings.Join(sorted, "|")
}

// Cluster resolves a cluster by id.
func (c *Cache) Cluster(id types.ClusterId) (Cluster, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clusters[id]
	return cl, ok
}

// ClusterForMarket resolves the cluster (if any) a market currently
// belongs to.
func (c *Cache) ClusterForMarket(marketID types.MarketId) (types.ClusterId, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byMarket[marketID]
	return id, ok
}

// AllClusters returns every live cluster id.
func (c *Cache) AllClusters() []types.ClusterId {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]types.ClusterId, 0, len(c.clusters))
	for id := range c.clusters {
		out = append(out, id)
	}
	return out
}
