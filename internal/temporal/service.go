package temporal

import (
	"context"

	"github.com/flexprice/mealsub/internal/config"
	ierr "github.com/flexprice/mealsub/internal/errors"
	"github.com/flexprice/mealsub/internal/jobs"
	"github.com/flexprice/mealsub/internal/logger"
	"go.temporal.io/sdk/client"
)

const dailyMaintenanceWorkflowID = "mealsub-daily-maintenance"

// Service handles Temporal workflow operations
type Service struct {
	client *TemporalClient
	log    *logger.Logger
	cfg    *config.Configuration
}

// NewService creates a new Temporal service
func NewService(client *TemporalClient, cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{
		client: client,
		log:    log,
		cfg:    cfg,
	}
}

// StartDailyMaintenance schedules the cron workflow. The workflow id is
// fixed, so calling it again while a run exists returns that run.
func (s *Service) StartDailyMaintenance(ctx context.Context) (string, error) {
	workflowOptions := client.StartWorkflowOptions{
		ID:           dailyMaintenanceWorkflowID,
		TaskQueue:    s.cfg.Temporal.TaskQueue,
		CronSchedule: s.cfg.Scheduler.DailySpec,
	}

	we, err := s.client.Client.ExecuteWorkflow(ctx, workflowOptions, DailyMaintenanceWorkflow, DailyMaintenanceInput{
		RequestedBy: jobs.RequestedByTemporal,
	})
	if err != nil {
		return "", ierr.WithError(err).
			WithHint("Failed to schedule daily maintenance workflow").
			Mark(ierr.ErrSystem)
	}

	s.log.Infow("scheduled daily maintenance workflow",
		"workflow_id", we.GetID(),
		"run_id", we.GetRunID(),
		"schedule", s.cfg.Scheduler.DailySpec,
	)
	return we.GetRunID(), nil
}

// Close closes the temporal client
func (s *Service) Close() {
	s.client.Close()
}
