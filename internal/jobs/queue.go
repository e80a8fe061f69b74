package jobs

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/flexprice/mealsub/internal/config"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/pubsub"
	"github.com/flexprice/mealsub/internal/pubsub/kafka"
	"github.com/flexprice/mealsub/internal/pubsub/memory"
	"github.com/flexprice/mealsub/internal/types"
)

// Queue publishes job runs for the worker to pick up
type Queue interface {
	// Enqueue publishes one run of job and returns the message id
	Enqueue(ctx context.Context, job types.JobName, requestedBy string) (string, error)
}

type queue struct {
	publisher pubsub.Publisher
	cfg       *config.Configuration
	logger    *logger.Logger
	now       func() time.Time
}

// NewQueue creates a queue that publishes on the configured job topics
func NewQueue(cfg *config.Configuration, logger *logger.Logger, publisher pubsub.Publisher) Queue {
	return &queue{
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (q *queue) Enqueue(ctx context.Context, job types.JobName, requestedBy string) (string, error) {
	if err := job.Validate(); err != nil {
		return "", err
	}

	msg, err := newMessage(job, requestedBy, q.now()).encode()
	if err != nil {
		return "", err
	}
	msg.SetContext(ctx)

	topic := q.cfg.Jobs.Topic(job)
	if err := q.publisher.Publish(ctx, topic, msg); err != nil {
		return "", ierr.WithError(err).
			WithHintf("Failed to enqueue job %s", job).
			WithReportableDetails(map[string]any{"topic": topic}).
			Mark(ierr.ErrSystem)
	}

	q.logger.Infow("enqueued job",
		"job", job,
		"topic", topic,
		"message_uuid", msg.UUID,
		"requested_by", requestedBy,
	)
	return msg.UUID, nil
}

// EnqueueDaily publishes every daily job once. It keeps going past a failed
// publish so one broken topic does not starve the others.
func EnqueueDaily(ctx context.Context, q Queue, requestedBy string) ([]string, error) {
	ids := make([]string, 0, len(types.DailyJobs))
	var errs []error
	for _, job := range types.DailyJobs {
		id, err := q.Enqueue(ctx, job, requestedBy)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		ids = append(ids, id)
	}
	if len(errs) > 0 {
		return ids, errors.Join(errs...)
	}
	return ids, nil
}

// NewPubSub selects the job transport from config
func NewPubSub(cfg *config.Configuration, logger *logger.Logger) (pubsub.PubSub, error) {
	switch cfg.Jobs.Queue {
	case types.QueueDriverKafka:
		return kafka.NewPubSub(cfg, logger)
	case types.QueueDriverMemory:
		return memory.NewPubSub(logger), nil
	default:
		return nil, ierr.NewErrorf("unknown job queue driver %q", cfg.Jobs.Queue).
			WithHint("Set jobs.queue to kafka or memory").
			Mark(ierr.ErrValidation)
	}
}
