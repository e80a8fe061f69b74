package temporal

import (
	"go.temporal.io/sdk/worker"
)

// RegisterWorkflowsAndActivities registers all workflows and activities with a Temporal worker.
func RegisterWorkflowsAndActivities(w worker.Worker, activities *JobActivities) {
	w.RegisterWorkflow(DailyMaintenanceWorkflow)    // "DailyMaintenanceWorkflow"
	w.RegisterActivity(activities.EnqueueDailyJobs) // "EnqueueDailyJobs"
}
