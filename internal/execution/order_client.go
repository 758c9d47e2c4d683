package execution

import (
	"context"
	"crypto/ecdsa"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"github.com/polymarket/go-order-utils/pkg/builder"
	"github.com/polymarket/go-order-utils/pkg/model"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/pkg/types"
)

// OrderClient signs and submits N-leg orders to the Polymarket CLOB,
// generalizing the teacher's two-leg PlaceOrdersBatch to an arbitrary
// number of outcomes so a single basket (single-condition,
// rebalancing, or combinatorial) submits atomically via the batch
// endpoint regardless of leg count.
type OrderClient struct {
	apiKey        string
	secret        string
	passphrase    string
	privateKey    *ecdsa.PrivateKey
	address       string
	proxyAddress  string
	signatureType model.SignatureType
	orderBuilder  builder.ExchangeOrderBuilder
	http          *resty.Client
	logger        *zap.Logger

	submittedMu sync.Mutex
	submitted   map[string]types.OrderSubmissionResponse
}

// OrderClientConfig configures signing identity and transport.
type OrderClientConfig struct {
	APIKey        string
	Secret        string
	Passphrase    string
	PrivateKey    string
	Address       string
	ProxyAddress  string
	SignatureType int
	BaseURL       string
	Logger        *zap.Logger
}

func NewOrderClient(cfg *OrderClientConfig) (*OrderClient, error) {
	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	address := cfg.Address
	if address == "" {
		publicKeyECDSA, _ := privateKey.Public().(*ecdsa.PublicKey)
		address = crypto.PubkeyToAddress(*publicKeyECDSA).Hex()
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://clob.polymarket.com"
	}

	chainID := big.NewInt(137) // Polygon mainnet
	orderBuilder := builder.NewExchangeOrderBuilderImpl(chainID, nil)

	return &OrderClient{
		apiKey:        cfg.APIKey,
		secret:        cfg.Secret,
		passphrase:    cfg.Passphrase,
		privateKey:    privateKey,
		address:       address,
		proxyAddress:  cfg.ProxyAddress,
		signatureType: model.SignatureType(cfg.SignatureType),
		orderBuilder:  orderBuilder,
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(30 * time.Second),
		logger:    cfg.Logger,
		submitted: make(map[string]types.OrderSubmissionResponse),
	}, nil
}

// idempotencyKey derives a stable id for one leg of a basket. It keys
// the client's local cache of successful submissions and is not sent
// to the exchange.
func idempotencyKey(opportunityID string, legIndex int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d", opportunityID, legIndex)))
	return hex.EncodeToString(h[:16])
}

func (c *OrderClient) GetMakerAddress() string {
	if c.proxyAddress != "" {
		return c.proxyAddress
	}
	return c.address
}

func (c *OrderClient) GetSignerAddress() string { return c.address }

// Leg is one signed-order-ready request: trade TokenID at Price, with
// the size PlaceLegs derives from its notional and rounds according to
// the market's TickSize. Side is "BUY" or "SELL";
// SELL legs are used by the recovery path to unwind a partial fill.
type Leg struct {
	TokenID  types.TokenId
	Outcome  string
	Side     string
	Price    types.Price
	TickSize types.Price
	MinSize  types.Volume
}

// PlaceLegs signs and submits every leg of a basket atomically via the
// batch endpoint, using opportunityID to derive each leg's idempotency
// key (hash of opportunity id + leg index). A call repeated after a
// successful submission returns the cached responses without
// submitting again; a failed call caches nothing, so repeating it
// submits the basket again.
func (c *OrderClient) PlaceLegs(ctx context.Context, opportunityID string, legs []Leg, notionalPerLeg types.Volume) ([]types.OrderSubmissionResponse, error) {
	keys := make([]string, len(legs))
	for i := range legs {
		keys[i] = idempotencyKey(opportunityID, i)
	}

	if cached, ok := c.cachedResponses(keys); ok {
		c.logger.Info("reusing-cached-basket-submission", zap.String("opportunity", opportunityID))
		return cached, nil
	}

	makerAddress := c.GetMakerAddress()
	batch := make(types.BatchOrderRequest, 0, len(legs))

	for _, leg := range legs {
		side := model.BUY
		if leg.Side == "SELL" {
			side = model.SELL
		}

		sizePrec, amountPrec := roundingConfig(leg.TickSize.Float64())
		takerTokens := round(notionalPerLeg.Float64()/leg.Price.Float64(), sizePrec)
		if takerTokens < leg.MinSize.Float64() {
			return nil, fmt.Errorf("leg %s size %.6f below minimum %s", leg.TokenID, takerTokens, leg.MinSize)
		}
		makerUSD := round(takerTokens*leg.Price.Float64(), amountPrec)

		// For a SELL, the maker offers tokens and takes USDC back.
		makerAmount, takerAmount := usdToRaw(makerUSD), usdToRaw(takerTokens)
		if side == model.SELL {
			makerAmount, takerAmount = takerAmount, makerAmount
		}

		orderData := &model.OrderData{
			Maker:         makerAddress,
			Taker:         "0x0000000000000000000000000000000000000000",
			TokenId:       string(leg.TokenID),
			MakerAmount:   makerAmount,
			TakerAmount:   takerAmount,
			Side:          side,
			FeeRateBps:    "0",
			Nonce:         "0",
			Signer:        c.address,
			Expiration:    "0",
			SignatureType: c.signatureType,
		}
		signed, err := c.orderBuilder.BuildSignedOrder(c.privateKey, orderData, model.CTFExchange)
		if err != nil {
			return nil, fmt.Errorf("build order for leg %s: %w", leg.TokenID, err)
		}
		batch = append(batch, types.OrderSubmissionRequest{
			Order:     convertToOrderJSON(signed),
			Owner:     c.apiKey,
			OrderType: "GTC",
		})
	}

	c.logger.Info("submitting-order-batch", zap.String("opportunity", opportunityID), zap.Int("legs", len(legs)))

	resp, err := c.submitBatch(ctx, batch)
	if err != nil {
		return nil, err
	}
	if len(resp) != len(legs) {
		return resp, fmt.Errorf("expected %d responses, got %d", len(legs), len(resp))
	}
	for i, r := range resp {
		if !r.Success {
			return resp, &types.OrderError{Code: r.ErrorMsg, Message: r.ErrorMsg, OrderID: r.OrderID, Leg: string(legs[i].TokenID)}
		}
	}

	c.cacheResponses(keys, resp)
	return resp, nil
}

func (c *OrderClient) cachedResponses(keys []string) ([]types.OrderSubmissionResponse, bool) {
	c.submittedMu.Lock()
	defer c.submittedMu.Unlock()

	out := make([]types.OrderSubmissionResponse, len(keys))
	for i, k := range keys {
		r, ok := c.submitted[k]
		if !ok {
			return nil, false
		}
		out[i] = r
	}
	return out, true
}

func (c *OrderClient) cacheResponses(keys []string, resp []types.OrderSubmissionResponse) {
	c.submittedMu.Lock()
	defer c.submittedMu.Unlock()

	for i, k := range keys {
		if i < len(resp) {
			c.submitted[k] = resp[i]
		}
	}
}

// CancelOrders cancels a set of orders by id, used by the Executor's
// recovery path to unwind unfilled legs within the recovery window.
func (c *OrderClient) CancelOrders(ctx context.Context, orderIDs []string) error {
	if len(orderIDs) == 0 {
		return nil
	}
	body, err := json.Marshal(map[string][]string{"orderIDs": orderIDs})
	if err != nil {
		return fmt.Errorf("marshal cancel request: %w", err)
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("DELETE", "/orders", body)).
		SetBody(body).
		Delete("/orders")
	if err != nil {
		return fmt.Errorf("cancel orders: %w", err)
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("cancel orders: status %d: %s", resp.StatusCode(), resp.String())
	}
	return nil
}

// GetOrder fetches a single order's current fill state, polled by the
// FillTracker.
func (c *OrderClient) GetOrder(ctx context.Context, orderID string) (*types.OrderQueryResponse, error) {
	var result types.OrderQueryResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("GET", "/order", nil)).
		SetQueryParam("order_id", orderID).
		SetResult(&result).
		Get("/order")
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("get order %s: status %d: %s", orderID, resp.StatusCode(), resp.String())
	}
	return &result, nil
}

func (c *OrderClient) submitBatch(ctx context.Context, batch types.BatchOrderRequest) (types.BatchOrderResponse, error) {
	body, err := json.Marshal(batch)
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	var result types.BatchOrderResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeaders(c.authHeaders("POST", "/orders", body)).
		SetBody(body).
		SetResult(&result).
		Post("/orders")
	if err != nil {
		return nil, fmt.Errorf("send batch: %w", err)
	}
	if resp.StatusCode() != 200 && resp.StatusCode() != 201 {
		return nil, fmt.Errorf("batch API error (status %d): %s", resp.StatusCode(), resp.String())
	}
	return result, nil
}

// authHeaders builds the L2 HMAC auth headers the CLOB API requires on
// every authenticated request.
func (c *OrderClient) authHeaders(method, path string, body []byte) map[string]string {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())
	payload := timestamp + method + path + string(body)

	secretBytes, _ := base64.URLEncoding.DecodeString(c.secret)
	h := hmac.New(sha256.New, secretBytes)
	h.Write([]byte(payload))
	signature := base64.URLEncoding.EncodeToString(h.Sum(nil))

	return map[string]string{
		"Content-Type":    "application/json",
		"POLY_API_KEY":    c.apiKey,
		"POLY_SIGNATURE":  signature,
		"POLY_TIMESTAMP":  timestamp,
		"POLY_PASSPHRASE": c.passphrase,
		"POLY_ADDRESS":    c.address,
	}
}

func convertToOrderJSON(order *model.SignedOrder) types.SignedOrderJSON {
	side := "BUY"
	if order.Side.Uint64() == uint64(model.SELL) {
		side = "SELL"
	}
	return types.SignedOrderJSON{
		Salt:          order.Salt.Int64(),
		Maker:         order.Maker.Hex(),
		Signer:        order.Signer.Hex(),
		Taker:         order.Taker.Hex(),
		TokenID:       order.TokenId.String(),
		MakerAmount:   order.MakerAmount.String(),
		TakerAmount:   order.TakerAmount.String(),
		Side:          side,
		Expiration:    order.Expiration.String(),
		Nonce:         order.Nonce.String(),
		FeeRateBps:    order.FeeRateBps.String(),
		SignatureType: int(order.SignatureType.Int64()),
		Signature:     "0x" + common.Bytes2Hex(order.Signature),
	}
}

func usdToRaw(usd float64) string {
	return fmt.Sprintf("%d", int64(usd*1_000_000))
}

// roundingConfig mirrors the CLOB's tick-size-dependent rounding rules.
func roundingConfig(tickSize float64) (sizePrecision, amountPrecision int) {
	switch tickSize {
	case 0.1:
		return 2, 3
	case 0.01:
		return 2, 4
	case 0.001:
		return 2, 5
	case 0.0001:
		return 2, 6
	default:
		return 2, 4
	}
}

func round(value float64, decimals int) float64 {
	m := math.Pow(10, float64(decimals))
	return math.Round(value*m) / m
}
