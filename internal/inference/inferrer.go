package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/pkg/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// MarketQuestion is the (market_id, question) pair the Inferrer batches
// and hands to the LLM.
type MarketQuestion struct {
	MarketID types.MarketId
	Question string
}

// Config controls batching, admission, and relation lifetime.
type Config struct {
	BatchSize     int
	MinConfidence float64
	RelationTTL   time.Duration
	RateLimit     rate.Limit
	RateBurst     int
}

// Inferrer asks an Llm to find logical relations across batches of
// markets and admits the ones that clear MinConfidence into the
// ClusterCache. It is the cache's sole writer.
type Inferrer struct {
	llm     Llm
	cache   *cluster.Cache
	config  Config
	limiter *rate.Limiter
	logger  *zap.Logger
}

func New(llm Llm, cacheC *cluster.Cache, cfg Config, logger *zap.Logger) *Inferrer {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 20
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = rate.Every(time.Second)
	}
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 1
	}
	return &Inferrer{
		llm:     llm,
		cache:   cacheC,
		config:  cfg,
		limiter: rate.NewLimiter(cfg.RateLimit, cfg.RateBurst),
		logger:  logger,
	}
}

// Run infers relations across every market, batched at config.BatchSize,
// and admits qualifying relations into the ClusterCache. Called once at
// startup with the full registry and again on every scheduled refresh.
func (inf *Inferrer) Run(ctx context.Context, markets []MarketQuestion) error {
	now := time.Now()
	var admitted []cluster.Relation

	for start := 0; start < len(markets); start += inf.config.BatchSize {
		end := start + inf.config.BatchSize
		if end > len(markets) {
			end = len(markets)
		}
		batch := markets[start:end]

		rels, err := inf.inferBatch(ctx, batch, now)
		if err != nil {
			BatchFailuresTotal.Inc()
			inf.logger.Warn("inference-batch-failed", zap.Error(err), zap.Int("size", len(batch)))
			continue
		}
		admitted = append(admitted, rels...)
	}

	inf.cache.PutRelations(admitted, now)
	inf.logger.Info("inference-refresh-complete", zap.Int("markets", len(markets)), zap.Int("admitted", len(admitted)))
	return nil
}

func (inf *Inferrer) inferBatch(ctx context.Context, batch []MarketQuestion, now time.Time) ([]cluster.Relation, error) {
	if err := inf.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	start := time.Now()
	BatchesRunTotal.Inc()

	raw, err := inf.llm.Complete(ctx, systemPrompt, userPrompt(batch))
	BatchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("complete: %w", err)
	}

	parsed, err := parseRelations(raw)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	RelationsInferredTotal.Add(float64(len(parsed)))

	ids := make(map[types.MarketId]bool, len(batch))
	for _, m := range batch {
		ids[m.MarketID] = true
	}

	out := make([]cluster.Relation, 0, len(parsed))
	for i, p := range parsed {
		if p.Confidence < inf.config.MinConfidence {
			RelationsRejectedTotal.WithLabelValues("below_min_confidence").Inc()
			continue
		}
		marketIDs := make([]types.MarketId, 0, len(p.MarketIDs))
		valid := true
		for _, id := range p.MarketIDs {
			mid := types.MarketId(id)
			if !ids[mid] {
				valid = false
				break
			}
			marketIDs = append(marketIDs, mid)
		}
		if !valid || len(marketIDs) < 2 {
			RelationsRejectedTotal.WithLabelValues("unknown_market").Inc()
			continue
		}
		kind, ok := relationKind(p.Kind)
		if !ok {
			RelationsRejectedTotal.WithLabelValues("unknown_kind").Inc()
			continue
		}
		out = append(out, cluster.Relation{
			ID:         types.RelationId(fmt.Sprintf("rel-%d-%d", now.UnixNano(), i)),
			Kind:       kind,
			MarketIDs:  marketIDs,
			Confidence: p.Confidence,
			Reasoning:  p.Reasoning,
			InferredAt: now,
			ExpiresAt:  now.Add(inf.config.RelationTTL),
		})
		RelationsAdmittedTotal.Inc()
	}
	return out, nil
}

func relationKind(s string) (cluster.RelationKind, bool) {
	switch s {
	case string(cluster.RelationImplies):
		return cluster.RelationImplies, true
	case string(cluster.RelationMutuallyExclusive):
		return cluster.RelationMutuallyExclusive, true
	case string(cluster.RelationExactlyOne):
		return cluster.RelationExactlyOne, true
	default:
		return "", false
	}
}

const systemPrompt = `You identify logical relationships between prediction market questions.
Respond only with a JSON array. Each element has: "kind" (one of "implies", "mutually_exclusive", "exactly_one"),
"market_ids" (array of the given market ids involved), "confidence" (0 to 1), "reasoning" (short text).
Return an empty array if no relation holds.`

func userPrompt(batch []MarketQuestion) string {
	var b strings.Builder
	b.WriteString("Markets:\n")
	for _, m := range batch {
		fmt.Fprintf(&b, "- %s: %s\n", m.MarketID, m.Question)
	}
	return b.String()
}

type rawRelation struct {
	Kind       string   `json:"kind"`
	MarketIDs  []string `json:"market_ids"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// parseRelations extracts the JSON array from the LLM's response,
// tolerating a surrounding markdown code fence.
func parseRelations(raw string) ([]rawRelation, error) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	if trimmed == "" {
		return nil, nil
	}
	var out []rawRelation
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return nil, fmt.Errorf("unmarshal relations: %w", err)
	}
	return out, nil
}
