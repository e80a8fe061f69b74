package temporal

import (
	"context"

	"github.com/flexprice/mealsub/internal/jobs"
	"github.com/flexprice/mealsub/internal/logger"
)

// JobActivities publishes job messages from inside a workflow
type JobActivities struct {
	queue  jobs.Queue
	logger *logger.Logger
}

func NewJobActivities(queue jobs.Queue, logger *logger.Logger) *JobActivities {
	return &JobActivities{queue: queue, logger: logger}
}

// EnqueueDailyJobs publishes every daily job once. A retried attempt may
// publish duplicates, which the idempotent job bodies absorb.
func (a *JobActivities) EnqueueDailyJobs(ctx context.Context, input DailyMaintenanceInput) (*DailyMaintenanceResult, error) {
	requestedBy := input.RequestedBy
	if requestedBy == "" {
		requestedBy = jobs.RequestedByTemporal
	}

	ids, err := jobs.EnqueueDaily(ctx, a.queue, requestedBy)
	if err != nil {
		a.logger.Errorw("daily enqueue incomplete", "enqueued", len(ids), "error", err)
		return nil, err
	}
	return &DailyMaintenanceResult{MessageIDs: ids}, nil
}
