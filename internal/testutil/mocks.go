package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/internal/marketstream"
	"github.com/polyarb/polyarb/internal/storage"
	"github.com/polyarb/polyarb/pkg/types"
)

// FakeStore is an in-memory storage.Store a test can inspect directly,
// unlike ConsoleStore which only logs.
type FakeStore struct {
	mu            sync.Mutex
	Opportunities []*types.Opportunity
	Approved      []bool
	Trades        []storage.TradeRecord
	Relations     []cluster.Relation
	Clusters      []cluster.Cluster
}

var _ storage.Store = (*FakeStore)(nil)

func NewFakeStore() *FakeStore {
	return &FakeStore{}
}

func (s *FakeStore) RecordOpportunity(ctx context.Context, opp *types.Opportunity, executed bool, rejectedReason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Opportunities = append(s.Opportunities, opp)
	s.Approved = append(s.Approved, executed)
	return nil
}

func (s *FakeStore) RecordTrade(ctx context.Context, trade storage.TradeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Trades = append(s.Trades, trade)
	return nil
}

func (s *FakeStore) UpsertDailyStats(ctx context.Context, stats storage.DailyStats) error {
	return nil
}

func (s *FakeStore) SaveRelation(ctx context.Context, rel cluster.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Relations = append(s.Relations, rel)
	return nil
}

func (s *FakeStore) SaveCluster(ctx context.Context, cl cluster.Cluster) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Clusters = append(s.Clusters, cl)
	return nil
}

func (s *FakeStore) Close() error { return nil }

// RecordedOpportunities returns a snapshot copy safe to range over.
func (s *FakeStore) RecordedOpportunities() []*types.Opportunity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Opportunity, len(s.Opportunities))
	copy(out, s.Opportunities)
	return out
}

// MockGammaAPI is a mock HTTP server that simulates the Polymarket
// Gamma API's market-listing endpoint.
type MockGammaAPI struct {
	*httptest.Server
	Markets []*types.Market
	mu      sync.RWMutex
}

// NewMockGammaAPI creates a new mock Gamma API server.
func NewMockGammaAPI(markets []*types.Market) *MockGammaAPI {
	mock := &MockGammaAPI{Markets: markets}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.RLock()
		defer mock.mu.RUnlock()

		if r.URL.Path == "/markets" {
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(mock.Markets)
			return
		}
		http.NotFound(w, r)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// AddMarket adds a market to the mock API.
func (m *MockGammaAPI) AddMarket(market *types.Market) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Markets = append(m.Markets, market)
}

// FakeBalanceFetcher is a risk.BalanceFetcher stand-in with a
// settable, concurrency-safe balance.
type FakeBalanceFetcher struct {
	mu      sync.Mutex
	balance float64
	err     error
}

func NewFakeBalanceFetcher(balance float64) *FakeBalanceFetcher {
	return &FakeBalanceFetcher{balance: balance}
}

func (f *FakeBalanceFetcher) GetBalances(ctx context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.balance, nil
}

func (f *FakeBalanceFetcher) SetBalance(balance float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balance = balance
}

func (f *FakeBalanceFetcher) SetError(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

// FakeStream is a marketstream.Stream double a test can feed messages
// into directly, without a real WebSocket connection.
type FakeStream struct {
	mu          sync.Mutex
	messages    chan *types.StreamMessage
	subscribed  map[types.TokenId]struct{}
	state       marketstream.State
	connectErr  error
}

var _ marketstream.Stream = (*FakeStream)(nil)

func NewFakeStream(bufferSize int) *FakeStream {
	return &FakeStream{
		messages:   make(chan *types.StreamMessage, bufferSize),
		subscribed: make(map[types.TokenId]struct{}),
	}
}

func (f *FakeStream) Connect(ctx context.Context) error {
	if f.connectErr != nil {
		return f.connectErr
	}
	f.mu.Lock()
	f.state = marketstream.Streaming
	f.mu.Unlock()
	return nil
}

func (f *FakeStream) Subscribe(ctx context.Context, tokenIDs []types.TokenId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range tokenIDs {
		f.subscribed[id] = struct{}{}
	}
	return nil
}

func (f *FakeStream) Unsubscribe(ctx context.Context, tokenIDs []types.TokenId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range tokenIDs {
		delete(f.subscribed, id)
	}
	return nil
}

func (f *FakeStream) Messages() <-chan *types.StreamMessage { return f.messages }

func (f *FakeStream) State() marketstream.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *FakeStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	close(f.messages)
	return nil
}

// Push injects a message as if it had arrived over the wire.
func (f *FakeStream) Push(msg *types.StreamMessage) {
	f.messages <- msg
}

// IsSubscribed reports whether a token is in the current subscription set.
func (f *FakeStream) IsSubscribed(tokenID types.TokenId) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subscribed[tokenID]
	return ok
}
