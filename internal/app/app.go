// Package app wires every detection, risk, and execution component
// into a single running process: market discovery, the order book
// cache, the strategy registry, the cluster detection service, LLM
// relation inference, the risk gate, and the executor.
package app

import (
	"context"
	"sync"

	"github.com/polyarb/polyarb/internal/cluster"
	"github.com/polyarb/polyarb/internal/discovery"
	"github.com/polyarb/polyarb/internal/execution"
	"github.com/polyarb/polyarb/internal/inference"
	"github.com/polyarb/polyarb/internal/marketstream"
	"github.com/polyarb/polyarb/internal/markets"
	"github.com/polyarb/polyarb/internal/notifier"
	"github.com/polyarb/polyarb/internal/orderbook"
	"github.com/polyarb/polyarb/internal/risk"
	"github.com/polyarb/polyarb/internal/storage"
	"github.com/polyarb/polyarb/internal/strategy"
	"github.com/polyarb/polyarb/internal/telemetry"
	"github.com/polyarb/polyarb/pkg/cache"
	"github.com/polyarb/polyarb/pkg/config"
	"github.com/polyarb/polyarb/pkg/healthprobe"
	"github.com/polyarb/polyarb/pkg/httpserver"
	"github.com/polyarb/polyarb/pkg/types"
	"github.com/polyarb/polyarb/pkg/wallet"
	"go.uber.org/zap"
)

// App is the main application orchestrator.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	healthChecker *healthprobe.HealthChecker
	httpServer    *httpserver.Server
	telemetry     *telemetry.Provider
	notifier      notifier.Notifier

	marketCache      cache.Cache
	discoveryService *discovery.Service
	stream           marketstream.Stream
	obCache          *orderbook.Cache

	metadata *markets.Cache

	clusterCache   *cluster.Cache
	clusterService *cluster.Service

	registry *strategy.Registry

	llm                inference.Llm
	inferrer           *inference.Inferrer
	inferenceScheduler *inference.Scheduler

	killSwitch      *risk.KillSwitch
	positionTracker *risk.PositionTracker
	riskManager     *risk.Manager
	walletTracker   *wallet.Tracker

	orderClient *execution.OrderClient
	executor    *execution.Executor

	store storage.Store

	opportunityChan chan *types.Opportunity

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options holds application options.
type Options struct {
	SingleMarket string // For debugging: slug of single market to track
}
