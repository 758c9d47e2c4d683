package marketstream

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ReconnectConfig holds the exponential backoff reconnection parameters.
type ReconnectConfig struct {
	InitialDelay      time.Duration
	MaxDelay          time.Duration
	BackoffMultiplier float64
	JitterPercent     float64
}

// reconnectManager applies jittered exponential backoff between
// reconnect attempts, resetting to the initial delay on success.
type reconnectManager struct {
	config         ReconnectConfig
	logger         *zap.Logger
	currentBackoff time.Duration
	mu             sync.Mutex
}

func newReconnectManager(cfg ReconnectConfig, logger *zap.Logger) *reconnectManager {
	return &reconnectManager{config: cfg, logger: logger, currentBackoff: cfg.InitialDelay}
}

func (rm *reconnectManager) reconnect(ctx context.Context, connect func(context.Context) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		backoff := rm.nextBackoff()
		rm.logger.Info("marketstream-reconnect-attempt", zap.Duration("backoff", backoff))
		ReconnectAttemptsTotal.Inc()

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}

		if err := connect(ctx); err == nil {
			rm.reset()
			rm.logger.Info("marketstream-reconnect-succeeded")
			return nil
		} else {
			rm.logger.Warn("marketstream-reconnect-failed", zap.Error(err))
			ReconnectFailuresTotal.Inc()
			rm.incrementBackoff()
		}
	}
}

func (rm *reconnectManager) reset() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.currentBackoff = rm.config.InitialDelay
}

func (rm *reconnectManager) nextBackoff() time.Duration {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	jitter := rand.Float64() * rm.config.JitterPercent
	return time.Duration(float64(rm.currentBackoff) * (1.0 + jitter))
}

func (rm *reconnectManager) incrementBackoff() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	next := time.Duration(float64(rm.currentBackoff) * rm.config.BackoffMultiplier)
	if next > rm.config.MaxDelay {
		next = rm.config.MaxDelay
	}
	rm.currentBackoff = next
}
