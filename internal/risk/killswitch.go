// Package risk implements the RiskManager's ordered gate, the
// PositionTracker's transactional exposure contract, and the global
// kill switch those checks open against.
package risk

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/polyarb/polyarb/internal/notifier"
)

// BalanceFetcher is the one wallet capability the kill switch needs.
type BalanceFetcher interface {
	GetBalances(ctx context.Context) (usdc float64, err error)
}

// KillSwitchConfig configures the hysteresis thresholds and the
// automatic-trip wrapper around manual balance checks.
type KillSwitchConfig struct {
	CheckInterval   time.Duration
	TradeMultiplier float64
	MinAbsolute     float64
	HysteresisRatio float64
}

// KillSwitch is the user-settable global circuit breaker gating every
// risk check. It generalizes the balance-only hysteresis breaker to an
// on/off switch flipped by the balance check or a manual override,
// and wraps the balance
// check itself in a gobreaker so a flaky wallet RPC degrades to
// "disabled" rather than repeatedly blocking on a dead endpoint.
type KillSwitch struct {
	enabled atomic.Bool
	manual  atomic.Bool // true once an operator has manually disabled trading

	wallet   BalanceFetcher
	cb       *gobreaker.CircuitBreaker[float64]
	logger   *zap.Logger
	notifier notifier.Notifier

	config KillSwitchConfig

	mu               sync.Mutex
	recentTrades     []float64
	disableThreshold float64
	enableThreshold  float64
}

func NewKillSwitch(wallet BalanceFetcher, cfg KillSwitchConfig, logger *zap.Logger, notify notifier.Notifier) *KillSwitch {
	ks := &KillSwitch{
		wallet:           wallet,
		logger:           logger,
		notifier:         notify,
		config:           cfg,
		recentTrades:     make([]float64, 0, 20),
		disableThreshold: cfg.MinAbsolute,
		enableThreshold:  cfg.MinAbsolute * cfg.HysteresisRatio,
	}
	ks.enabled.Store(true)

	ks.cb = gobreaker.NewCircuitBreaker[float64](gobreaker.Settings{
		Name:    "wallet-balance",
		Timeout: cfg.CheckInterval * 2,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("kill-switch-breaker-state-change", zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})
	KillSwitchEnabled.Set(1)
	return ks
}

// IsEnabled reports whether trading is currently permitted.
func (ks *KillSwitch) IsEnabled() bool {
	return ks.enabled.Load() && !ks.manual.Load()
}

// SetManualOverride lets an operator force trading off regardless of
// balance-derived thresholds.
func (ks *KillSwitch) SetManualOverride(disabled bool) {
	ks.manual.Store(disabled)
	if disabled {
		KillSwitchEnabled.Set(0)
	} else if ks.enabled.Load() {
		KillSwitchEnabled.Set(1)
	}
}

// RecordTrade folds a trade's size into the rolling window used to
// recompute the disable/enable thresholds.
func (ks *KillSwitch) RecordTrade(size float64) {
	if size <= 0 {
		return
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()

	ks.recentTrades = append(ks.recentTrades, size)
	if len(ks.recentTrades) > 20 {
		ks.recentTrades = ks.recentTrades[1:]
	}
	sum := 0.0
	for _, s := range ks.recentTrades {
		sum += s
	}
	avg := sum / float64(len(ks.recentTrades))
	ks.disableThreshold = math.Max(avg*ks.config.TradeMultiplier, ks.config.MinAbsolute)
	ks.enableThreshold = ks.disableThreshold * ks.config.HysteresisRatio
}

// Check fetches the current balance through the breaker and flips the
// switch according to hysteresis. A wallet fetch error, or the breaker
// being open, disables trading rather than propagating the error —
// the kill switch fails closed.
func (ks *KillSwitch) Check(ctx context.Context) {
	balance, err := ks.cb.Execute(func() (float64, error) {
		return ks.wallet.GetBalances(ctx)
	})
	if err != nil {
		ks.logger.Warn("kill-switch-balance-check-failed", zap.Error(err))
		ks.enabled.Store(false)
		KillSwitchEnabled.Set(0)
		KillSwitchTripsTotal.Inc()
		ks.notify(notifier.SeverityCritical, "kill-switch-tripped", map[string]any{"reason": "balance_check_failed"})
		return
	}

	KillSwitchBalance.Set(balance)

	ks.mu.Lock()
	disableThreshold, enableThreshold := ks.disableThreshold, ks.enableThreshold
	ks.mu.Unlock()

	currentlyEnabled := ks.enabled.Load()
	switch {
	case currentlyEnabled && balance < disableThreshold:
		ks.enabled.Store(false)
		KillSwitchEnabled.Set(0)
		KillSwitchTripsTotal.Inc()
		ks.logger.Warn("kill-switch-disabled", zap.Float64("balance", balance), zap.Float64("threshold", disableThreshold))
		ks.notify(notifier.SeverityCritical, "kill-switch-tripped", map[string]any{
			"reason": "balance_below_threshold", "balance": balance, "threshold": disableThreshold,
		})
	case !currentlyEnabled && balance >= enableThreshold:
		ks.enabled.Store(true)
		if !ks.manual.Load() {
			KillSwitchEnabled.Set(1)
		}
		ks.logger.Info("kill-switch-enabled", zap.Float64("balance", balance), zap.Float64("threshold", enableThreshold))
		ks.notify(notifier.SeverityInfo, "kill-switch-re-enabled", map[string]any{"balance": balance})
	}
}

// notify forwards ev to the configured Notifier, a no-op when none was
// wired in.
func (ks *KillSwitch) notify(severity notifier.Severity, message string, fields map[string]any) {
	if ks.notifier == nil {
		return
	}
	ks.notifier.Notify(notifier.Event{Severity: severity, Message: message, Fields: fields})
}

// Run drives the periodic balance check until ctx is cancelled.
func (ks *KillSwitch) Run(ctx context.Context) {
	ks.Check(ctx)
	ticker := time.NewTicker(ks.config.CheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ks.Check(ctx)
		}
	}
}
