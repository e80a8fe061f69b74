package dto

import "github.com/flexprice/mealsub/internal/types"

// TriggerJobResponse acknowledges an operator enqueued job
type TriggerJobResponse struct {
	Job       types.JobName `json:"job"`
	MessageID string        `json:"message_id"`
}

// JobResult summarises one job run
type JobResult struct {
	Job      types.JobName `json:"job"`
	Affected int           `json:"affected"`
	Failed   int           `json:"failed"`
}
