package logger

import "github.com/robfig/cron/v3"

type cronLogger struct {
	logger *Logger
}

// GetCronLogger returns a logger usable by robfig/cron
func (l *Logger) GetCronLogger() cron.Logger {
	return &cronLogger{logger: l}
}

// Info carries cron's own scheduling chatter, which we only want at debug
func (c *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.logger.Debugw(msg, keysAndValues...)
}

func (c *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
