package types

type RunMode string

const (
	// ModeLocal runs the API server, the worker and the scheduler in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server
	ModeAPI RunMode = "api"
	// ModeWorker runs just the job worker
	ModeWorker RunMode = "worker"
	// ModeScheduler runs just the daily job trigger
	ModeScheduler RunMode = "scheduler"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
)

// SchedulerDriver selects what fires the daily maintenance trigger
type SchedulerDriver string

const (
	SchedulerDriverCron     SchedulerDriver = "cron"
	SchedulerDriverTemporal SchedulerDriver = "temporal"
)

// QueueDriver selects the transport backing the job queue
type QueueDriver string

const (
	QueueDriverKafka  QueueDriver = "kafka"
	QueueDriverMemory QueueDriver = "memory"
)
