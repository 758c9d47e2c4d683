package inference

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// MarketSource supplies the current market registry at refresh time.
type MarketSource func() []MarketQuestion

// Scheduler drives the Inferrer's startup run plus periodic refreshes
// on a cron schedule, replacing a hand-rolled ticker loop.
type Scheduler struct {
	inferrer *Inferrer
	markets  MarketSource
	logger   *zap.Logger
	cron     *cron.Cron
}

func NewScheduler(inf *Inferrer, markets MarketSource, spec string, logger *zap.Logger) (*Scheduler, error) {
	c := cron.New()
	s := &Scheduler{inferrer: inf, markets: markets, logger: logger, cron: c}

	if _, err := c.AddFunc(spec, s.refresh); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the startup inference pass synchronously, then begins the
// cron-scheduled periodic refresh in the background.
func (s *Scheduler) Start(ctx context.Context) error {
	if err := s.inferrer.Run(ctx, s.markets()); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Scheduler) refresh() {
	if err := s.inferrer.Run(context.Background(), s.markets()); err != nil {
		s.logger.Warn("scheduled-inference-failed", zap.Error(err))
	}
}
