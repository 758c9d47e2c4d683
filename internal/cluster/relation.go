// Package cluster implements the ClusterCache and ClusterDetectionService:
// cross-market relation storage with TTL expiry, union-find cluster
// assembly, and the debounced loop that re-runs combinatorial
// detection only for clusters whose books changed.
package cluster

import (
	"time"

	"github.com/polyarb/polyarb/internal/solver"
	"github.com/polyarb/polyarb/pkg/types"
)

// RelationKind names the logical relationship an Inferrer asserts
// between two or more markets.
type RelationKind string

const (
	RelationImplies           RelationKind = "implies"
	RelationMutuallyExclusive RelationKind = "mutually_exclusive"
	RelationExactlyOne        RelationKind = "exactly_one"
)

// Relation is an inferred cross-market relationship, admitted only
// when its confidence clears the configured floor. It is purged once
// expired.
type Relation struct {
	ID         types.RelationId
	Kind       RelationKind
	MarketIDs  []types.MarketId
	Confidence float64
	Reasoning  string
	InferredAt time.Time
	ExpiresAt  time.Time
}

// Expired reports whether the relation is past its validity window at
// the given instant.
func (r Relation) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// Cluster groups the markets connected by admitted relations and
// precomputes the linear constraints those relations imply over the
// cluster's joint outcome vector. A market belongs to at most one
// cluster.
type Cluster struct {
	ID          types.ClusterId
	MarketIDs   []types.MarketId
	RelationIDs []types.RelationId
	Outcomes    []OutcomeRef
	Constraints []solver.Constraint
	UpdatedAt   time.Time
}

// OutcomeRef names one outcome token's place in the cluster's joint
// price vector theta.
type OutcomeRef struct {
	TokenID  types.TokenId
	MarketID types.MarketId
	Outcome  string
}
