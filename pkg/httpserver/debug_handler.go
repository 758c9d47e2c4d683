package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/cluster"
)

// DebugHandler exposes read-only introspection into cross-market
// cluster state, useful for diagnosing why a combinatorial opportunity
// did or didn't fire.
type DebugHandler struct {
	clusters *cluster.Cache
	logger   *zap.Logger
}

// NewDebugHandler creates a debug handler bound to a cluster cache.
func NewDebugHandler(clusters *cluster.Cache, logger *zap.Logger) *DebugHandler {
	return &DebugHandler{clusters: clusters, logger: logger}
}

// ClusterSummary is the JSON shape returned for each live cluster.
type ClusterSummary struct {
	ID          string   `json:"id"`
	MarketIDs   []string `json:"market_ids"`
	RelationIDs []string `json:"relation_ids"`
	OutcomeCount int     `json:"outcome_count"`
}

// HandleClusters handles GET /debug/clusters, dumping every currently
// tracked cluster.
func (h *DebugHandler) HandleClusters(w http.ResponseWriter, r *http.Request) {
	ids := h.clusters.AllClusters()
	summaries := make([]ClusterSummary, 0, len(ids))

	for _, id := range ids {
		cl, ok := h.clusters.Cluster(id)
		if !ok {
			continue
		}

		marketIDs := make([]string, len(cl.MarketIDs))
		for i, m := range cl.MarketIDs {
			marketIDs[i] = string(m)
		}
		relationIDs := make([]string, len(cl.RelationIDs))
		for i, rel := range cl.RelationIDs {
			relationIDs[i] = string(rel)
		}

		summaries = append(summaries, ClusterSummary{
			ID:           string(cl.ID),
			MarketIDs:    marketIDs,
			RelationIDs:  relationIDs,
			OutcomeCount: len(cl.Outcomes),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(summaries); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}
