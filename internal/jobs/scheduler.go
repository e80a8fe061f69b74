package jobs

import (
	"context"
	"time"

	"github.com/flexprice/mealsub/internal/config"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
)

const enqueueTimeout = 30 * time.Second

// Scheduler enqueues the daily jobs on a cron spec
type Scheduler struct {
	cron   *cron.Cron
	queue  Queue
	cfg    *config.Configuration
	logger *logger.Logger
}

func NewScheduler(cfg *config.Configuration, logger *logger.Logger, queue Queue) *Scheduler {
	c := cron.New(cron.WithChain(cron.Recover(logger.GetCronLogger())))
	return &Scheduler{
		cron:   c,
		queue:  queue,
		cfg:    cfg,
		logger: logger,
	}
}

// Start registers the daily trigger and starts the cron loop
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.Scheduler.DailySpec, s.enqueueDaily); err != nil {
		return ierr.WithError(err).
			WithHintf("Invalid scheduler daily_spec %q", s.cfg.Scheduler.DailySpec).
			Mark(ierr.ErrValidation)
	}
	s.logger.Infow("scheduled daily jobs", "schedule", s.cfg.Scheduler.DailySpec)

	s.cron.Start()
	return nil
}

// Stop stops the cron loop. The returned context is done once running
// triggers have returned.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) enqueueDaily() {
	ctx, cancel := context.WithTimeout(context.Background(), enqueueTimeout)
	defer cancel()

	ids, err := EnqueueDaily(ctx, s.queue, RequestedByScheduler)
	if err != nil {
		s.logger.Errorw("failed to enqueue daily jobs", "enqueued", len(ids), "error", err)
		return
	}
	s.logger.Infow("enqueued daily jobs", "message_ids", ids)
}

// RegisterWithLifecycle ties the cron loop to the fx lifecycle
func (s *Scheduler) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			select {
			case <-s.Stop().Done():
				s.logger.Info("cron scheduler stopped")
			case <-ctx.Done():
				s.logger.Error("timeout while stopping cron scheduler")
			}
			return nil
		},
	})
}
