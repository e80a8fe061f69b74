package v1

import (
	"net/http"

	"github.com/flexprice/mealsub/internal/api/dto"
	"github.com/flexprice/mealsub/internal/jobs"
	"github.com/flexprice/mealsub/internal/logger"
	"github.com/flexprice/mealsub/internal/types"
	"github.com/gin-gonic/gin"
)

type JobsHandler struct {
	queue jobs.Queue
	log   *logger.Logger
}

func NewJobsHandler(queue jobs.Queue, log *logger.Logger) *JobsHandler {
	return &JobsHandler{queue: queue, log: log}
}

// @Summary Trigger a job
// @Description Enqueue one run of a maintenance job now
// @Tags Admin
// @Produce json
// @Param name path string true "Job name" Enums(expire-subscriptions, unfreeze-subscriptions, lock-meals, auto-renew-subscriptions)
// @Success 202 {object} dto.TriggerJobResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /admin/jobs/{name} [post]
func (h *JobsHandler) TriggerJob(c *gin.Context) {
	job := types.JobName(c.Param("name"))

	id, err := h.queue.Enqueue(c.Request.Context(), job, jobs.RequestedByOperator)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusAccepted, dto.TriggerJobResponse{Job: job, MessageID: id})
}
