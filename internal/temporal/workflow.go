package temporal

import (
	"time"

	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

// DailyMaintenanceInput is passed to every cron run
type DailyMaintenanceInput struct {
	RequestedBy string `json:"requested_by"`
}

// DailyMaintenanceResult lists the job messages a run published
type DailyMaintenanceResult struct {
	MessageIDs []string `json:"message_ids"`
}

// DailyMaintenanceWorkflow enqueues the daily jobs. The jobs themselves run
// on the message worker, the workflow only replaces the cron trigger.
func DailyMaintenanceWorkflow(ctx workflow.Context, input DailyMaintenanceInput) (*DailyMaintenanceResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting daily maintenance", "requestedBy", input.RequestedBy)

	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporalsdk.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	})

	var a *JobActivities
	var result DailyMaintenanceResult
	if err := workflow.ExecuteActivity(ctx, a.EnqueueDailyJobs, input).Get(ctx, &result); err != nil {
		logger.Error("Failed to enqueue daily jobs", "error", err)
		return nil, err
	}

	logger.Info("Daily maintenance enqueued", "messages", len(result.MessageIDs))
	return &result, nil
}
