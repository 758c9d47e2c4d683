package app

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Shutdown gracefully shuts down the application, bounding every close
// call with a shared deadline and cancelling the run context so every
// background loop observes ctx.Done() immediately.
func (a *App) Shutdown() error {
	a.logger.Info("application-shutting-down")

	a.healthChecker.SetReady(false)
	a.cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http-server-shutdown-error", zap.Error(err))
	}

	if a.inferenceScheduler != nil {
		a.inferenceScheduler.Stop()
	}

	if !a.cfg.DryRun {
		if err := a.executor.Close(); err != nil {
			a.logger.Error("executor-close-error", zap.Error(err))
		}
	}

	if err := a.store.Close(); err != nil {
		a.logger.Error("storage-close-error", zap.Error(err))
	}

	if err := a.stream.Close(); err != nil {
		a.logger.Error("market-stream-close-error", zap.Error(err))
	}

	a.wg.Wait()

	a.logger.Info("application-shutdown-complete")
	return nil
}
