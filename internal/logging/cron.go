package logging

import (
	"log/slog"

	"github.com/robfig/cron/v3"
)

type cronLogger struct {
	logger *slog.Logger
}

// CronLogger adapts a slog logger to cron.Logger. Cron's routine Info output
// (schedule, wake, run) is demoted to debug.
func CronLogger(logger *slog.Logger) cron.Logger {
	if logger == nil {
		logger = NewNop()
	}
	return cronLogger{logger: logger}
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{Error(err), String(FieldEventType, "cron_error")}, keysAndValues...)
	l.logger.Error("cron: "+msg, args...)
}
