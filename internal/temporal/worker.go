package temporal

import (
	"context"

	"github.com/flexprice/mealsub/internal/config"
	"github.com/flexprice/mealsub/internal/jobs"
	"github.com/flexprice/mealsub/internal/logger"
	"go.temporal.io/sdk/worker"
	"go.uber.org/fx"
)

// Worker polls the maintenance task queue. The only work it does is enqueue
// the daily jobs, so it runs with a single slot of each kind.
type Worker struct {
	worker worker.Worker
	log    *logger.Logger
}

func NewWorker(client *TemporalClient, cfg *config.TemporalConfig, queue jobs.Queue, log *logger.Logger) *Worker {
	w := worker.New(client.Client, cfg.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     1,
		MaxConcurrentWorkflowTaskExecutionSize: 1,
	})
	RegisterWorkflowsAndActivities(w, NewJobActivities(queue, log))

	return &Worker{
		worker: w,
		log:    log.With("task_queue", cfg.TaskQueue),
	}
}

func (w *Worker) Start() error {
	w.log.Info("starting temporal worker")
	return w.worker.Start()
}

// Stop blocks until in-flight activities finish
func (w *Worker) Stop() {
	w.log.Info("stopping temporal worker")
	w.worker.Stop()
}

// RegisterWithLifecycle ties the worker to the fx lifecycle. Stop gives up
// waiting when the shutdown context expires.
func (w *Worker) RegisterWithLifecycle(lc fx.Lifecycle) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return w.Start()
		},
		OnStop: func(ctx context.Context) error {
			done := make(chan struct{})
			go func() {
				defer close(done)
				w.Stop()
			}()

			select {
			case <-done:
			case <-ctx.Done():
				w.log.Errorw("temporal worker did not stop in time", "error", ctx.Err())
			}
			return nil
		},
	})
}
