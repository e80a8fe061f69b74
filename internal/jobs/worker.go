package jobs

import (
	"context"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/pubsub/router"
	"github.com/flexprice/mealsub/internal/sentry"
	"github.com/flexprice/mealsub/internal/service"
	"github.com/flexprice/mealsub/internal/types"
)

// Worker consumes job messages and runs the matching job body
type Worker struct {
	jobs   service.SubscriptionJobService
	locker Locker
	cfg    *config.Configuration
	logger *logger.Logger
	sentry *sentry.Service
}

func NewWorker(
	cfg *config.Configuration,
	logger *logger.Logger,
	sentry *sentry.Service,
	jobs service.SubscriptionJobService,
	locker Locker,
) *Worker {
	return &Worker{
		jobs:   jobs,
		locker: locker,
		cfg:    cfg,
		logger: logger,
		sentry: sentry,
	}
}

// RegisterHandlers adds one handler per daily job topic
func (w *Worker) RegisterHandlers(r *router.Router) {
	for _, job := range types.DailyJobs {
		r.AddNoPublishHandler(
			"job_"+job.String(),
			w.cfg.Jobs.Topic(job),
			w.handler(job),
		)
		w.logger.Infow("registered job handler", "job", job, "topic", w.cfg.Jobs.Topic(job))
	}
}

func (w *Worker) handler(job types.JobName) func(msg *message.Message) error {
	return func(msg *message.Message) error {
		m, err := decodeMessage(msg)
		if err != nil {
			return err
		}
		if m.Job != job {
			w.logger.Warnw("job message on the wrong topic, running the topic's job",
				"topic_job", job,
				"message_job", m.Job,
				"message_uuid", msg.UUID,
			)
		}

		_, err = w.Process(msg.Context(), job, m)
		return err
	}
}

// Process runs job once while holding its lock. A run that finds the lock
// taken is skipped since every job body is idempotent and the holder
// covers the same records.
func (w *Worker) Process(ctx context.Context, job types.JobName, m *Message) (*dto.JobResult, error) {
	log := w.logger.With("job", job, "requested_by", m.RequestedBy, "run_date", m.RunDate)

	release, ok, err := w.locker.TryLock(ctx, "job:"+job.String())
	if err != nil {
		return nil, err
	}
	if !ok {
		log.Infow("job already running elsewhere, skipping")
		return &dto.JobResult{Job: job}, nil
	}
	defer func() {
		_ = release(context.WithoutCancel(ctx))
	}()

	span, ctx := w.sentry.StartJobSpan(ctx, job.String())
	if span != nil {
		defer span.Finish()
	}

	start := time.Now()
	result, err := w.jobs.Run(ctx, job)
	if err != nil {
		log.Errorw("job failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		w.sentry.CaptureJobFailure(job.String(), err, map[string]interface{}{
			"requested_by": m.RequestedBy,
			"run_date":     m.RunDate,
		})
		return nil, err
	}

	if result.Failed > 0 {
		w.sentry.AddBreadcrumb("job", "job finished with failures", map[string]interface{}{
			"job":      job,
			"affected": result.Affected,
			"failed":   result.Failed,
		})
		log.Warnw("job finished with failures",
			"affected", result.Affected,
			"failed", result.Failed,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return result, nil
	}

	log.Infow("job finished",
		"affected", result.Affected,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
