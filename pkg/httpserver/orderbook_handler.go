package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/discovery"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/pkg/types"
)

// OrderbookHandler handles HTTP requests for orderbook data.
type OrderbookHandler struct {
	obCache          *orderbook.Cache
	discoveryService *discovery.Service
	logger           *zap.Logger
}

// NewOrderbookHandler creates a new orderbook handler.
func NewOrderbookHandler(obCache *orderbook.Cache, discSvc *discovery.Service, logger *zap.Logger) *OrderbookHandler {
	return &OrderbookHandler{
		obCache:          obCache,
		discoveryService: discSvc,
		logger:           logger,
	}
}

// OutcomeOrderbook represents orderbook data for a single outcome.
type OutcomeOrderbook struct {
	Outcome      string  `json:"outcome"`
	TokenID      string  `json:"token_id"`
	BestBidPrice float64 `json:"best_bid_price"`
	BestBidSize  float64 `json:"best_bid_size"`
	BestAskPrice float64 `json:"best_ask_price"`
	BestAskSize  float64 `json:"best_ask_size"`
}

// OrderbookResponse represents the HTTP response for orderbook data.
type OrderbookResponse struct {
	MarketID   string             `json:"market_id"`
	MarketSlug string             `json:"market_slug"`
	Question   string             `json:"question"`
	Outcomes   []OutcomeOrderbook `json:"outcomes"`
}

// ErrorResponse represents an HTTP error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HandleOrderbook handles GET /api/orderbook?slug=<market-slug> requests.
func (h *OrderbookHandler) HandleOrderbook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	slug := r.URL.Query().Get("slug")
	if slug == "" {
		h.writeError(w, "missing required query parameter: slug", http.StatusBadRequest)
		return
	}

	h.logger.Debug("orderbook-request-received", zap.String("slug", slug))

	marketSub, exists := h.discoveryService.GetSubscription(slug)
	if !exists {
		h.writeError(w, "market not found or not subscribed", http.StatusNotFound)
		return
	}

	outcomes := make([]OutcomeOrderbook, 0, len(marketSub.Outcomes))

	for _, outcome := range marketSub.Outcomes {
		snapshot, found := h.obCache.Snapshot(outcome.TokenID)
		if !found {
			h.logger.Debug("orderbook-not-available",
				zap.String("token-id", string(outcome.TokenID)),
				zap.String("outcome", outcome.Outcome))
			continue
		}

		entry := OutcomeOrderbook{
			Outcome: outcome.Outcome,
			TokenID: string(outcome.TokenID),
		}
		if bid, ok := snapshot.BestBid(); ok {
			entry.BestBidPrice = bid.Price.Float64()
			entry.BestBidSize = bid.Size.Float64()
		}
		if ask, ok := snapshot.BestAsk(); ok {
			entry.BestAskPrice = ask.Price.Float64()
			entry.BestAskSize = ask.Size.Float64()
		}

		outcomes = append(outcomes, entry)
	}

	response := OrderbookResponse{
		MarketID:   string(marketSub.MarketID),
		MarketSlug: marketSub.MarketSlug,
		Question:   marketSub.Question,
		Outcomes:   outcomes,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// HandleDebugToken handles GET /debug/orderbook/{token}, dumping the raw
// snapshot for a single token id regardless of market subscription.
func (h *OrderbookHandler) HandleDebugToken(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		h.writeError(w, "missing token id", http.StatusBadRequest)
		return
	}

	snapshot, found := h.obCache.Snapshot(types.TokenId(token))
	if !found {
		h.writeError(w, "no orderbook tracked for token", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(snapshot); err != nil {
		h.logger.Error("failed-to-encode-response", zap.Error(err))
	}
}

// writeError writes a JSON error response.
func (h *OrderbookHandler) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{Error: message}
	err := json.NewEncoder(w).Encode(response)
	if err != nil {
		h.logger.Error("failed-to-encode-error-response", zap.Error(err))
	}
}
