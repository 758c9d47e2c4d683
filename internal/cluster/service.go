package cluster

import (
	"context"
	"sync"
	"time"

	"github.com/polyarb/polyarb/internal/solver"
	"github.com/polyarb/polyarb/internal/strategy"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
)

// BookLookup resolves a token's current order book snapshot, the same
// capability the strategy registry's context exposes.
type BookLookup interface {
	Snapshot(tokenID types.TokenId) (types.OrderBookSnapshot, bool)
}

// OpportunitySink receives opportunities the combinatorial strategy
// emits once a cluster's projection clears its gap threshold.
type OpportunitySink func(*types.Opportunity)

// ServiceConfig configures the debounced detection loop.
type ServiceConfig struct {
	DebounceInterval   time.Duration
	MaxClustersPerCycle int
	CombinatorialMaxIters int
	CombinatorialTolerance float64
	CombinatorialGapThreshold float64
	TakerFee types.Price
}

// Service runs the combinatorial strategy efficiently by evaluating
// only clusters whose member books changed since the last cycle.
type Service struct {
	cache  *Cache
	books  BookLookup
	combi  *strategy.Combinatorial
	config ServiceConfig
	logger *zap.Logger

	dirtyMu sync.Mutex
	dirty   map[types.ClusterId]struct{}

	warmMu sync.Mutex
	warm   map[types.ClusterId][]float64

	sink OpportunitySink
}

func NewService(cacheC *Cache, books BookLookup, sink OpportunitySink, cfg ServiceConfig, logger *zap.Logger) *Service {
	return &Service{
		cache:  cacheC,
		books:  books,
		combi:  strategy.NewCombinatorial(logger),
		config: cfg,
		logger: logger,
		dirty:  make(map[types.ClusterId]struct{}),
		warm:   make(map[types.ClusterId][]float64),
		sink:   sink,
	}
}

// MarkDirty records that a market's cluster needs re-evaluation on the
// next cycle. Called from the OrderBookCache's dirty-token drain.
func (s *Service) MarkDirty(marketID types.MarketId) {
	clusterID, ok := s.cache.ClusterForMarket(marketID)
	if !ok {
		return
	}
	s.dirtyMu.Lock()
	s.dirty[clusterID] = struct{}{}
	s.dirtyMu.Unlock()
}

// Run drives the debounce ticker until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.config.DebounceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick drains up to MaxClustersPerCycle dirty clusters, evaluating
// each; any remainder stays dirty for the next tick.
func (s *Service) tick() {
	batch := s.drainDirty(s.config.MaxClustersPerCycle)
	for _, clusterID := range batch {
		s.evaluate(clusterID)
	}
}

func (s *Service) drainDirty(limit int) []types.ClusterId {
	s.dirtyMu.Lock()
	defer s.dirtyMu.Unlock()

	if len(s.dirty) == 0 {
		return nil
	}
	out := make([]types.ClusterId, 0, limit)
	for id := range s.dirty {
		if len(out) >= limit {
			break
		}
		out = append(out, id)
		delete(s.dirty, id)
	}
	return out
}

func (s *Service) evaluate(clusterID types.ClusterId) {
	cl, ok := s.cache.Cluster(clusterID)
	if !ok {
		return
	}
	if len(cl.MarketIDs) < 2 {
		// A cluster with a single market degenerates to a no-op.
		return
	}

	theta := make([]float64, len(cl.Outcomes))
	for i, o := range cl.Outcomes {
		snap, ok := s.books.Snapshot(o.TokenID)
		if !ok || snap.Stale {
			return
		}
		ask, ok := snap.BestAsk()
		if !ok {
			return
		}
		theta[i] = ask.Price.Float64()
	}

	start := time.Now()
	warmStart := s.warmStartFor(clusterID)
	opp, mu := s.combi.DetectCluster(strategy.CombinatorialInput{
		Cluster:       toStrategyCluster(cl),
		Theta:         theta,
		WarmStart:     warmStart,
		MaxIterations: s.config.CombinatorialMaxIters,
		Tolerance:     s.config.CombinatorialTolerance,
		GapThreshold:  s.config.CombinatorialGapThreshold,
		TakerFee:      s.config.TakerFee,
		Asks:          s.askLevelsFor(cl),
	})
	DetectionDuration.Observe(time.Since(start).Seconds())
	s.saveWarmStart(clusterID, mu)

	if opp != nil && s.sink != nil {
		s.sink(opp)
	}
}

func (s *Service) askLevelsFor(cl Cluster) []types.PriceLevel {
	levels := make([]types.PriceLevel, len(cl.Outcomes))
	for i, o := range cl.Outcomes {
		snap, _ := s.books.Snapshot(o.TokenID)
		ask, _ := snap.BestAsk()
		levels[i] = ask
	}
	return levels
}

func (s *Service) warmStartFor(clusterID types.ClusterId) []float64 {
	s.warmMu.Lock()
	defer s.warmMu.Unlock()
	return s.warm[clusterID]
}

func (s *Service) saveWarmStart(clusterID types.ClusterId, mu []float64) {
	s.warmMu.Lock()
	defer s.warmMu.Unlock()
	s.warm[clusterID] = mu
}

func toStrategyCluster(cl Cluster) strategy.Cluster {
	refs := make([]strategy.OutcomeRef, len(cl.Outcomes))
	for i, o := range cl.Outcomes {
		refs[i] = strategy.OutcomeRef{TokenID: o.TokenID, MarketID: o.MarketID, Outcome: o.Outcome}
	}
	return strategy.Cluster{
		ID:          cl.ID,
		MarketIDs:   cl.MarketIDs,
		OutcomeRefs: refs,
		Constraints: append([]solver.Constraint(nil), cl.Constraints...),
	}
}
