package observer

import (
	"context"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vnykmshr/taskflow/pkg/task"
)

// Logging returns an observer that writes one structured log entry per event.
// Lifecycle progress logs at Debug, retries at Warn and failures at Error.
func Logging(logger *zap.Logger) Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &loggingObserver{logger: logger}
}

type loggingObserver struct {
	logger *zap.Logger
}

func snapshotFields(s task.Snapshot) []zap.Field {
	fields := []zap.Field{
		zap.String("task_id", s.ID),
		zap.Stringer("state", s.State),
		zap.Int("attempt", s.Attempts),
		zap.Int("max_attempts", s.MaxAttempts),
		zap.Int("priority", s.Priority),
	}
	if s.Error != "" {
		fields = append(fields, zap.String("error", s.Error), zap.Stringer("error_kind", s.ErrKind))
	}
	if d := s.Duration(); d > 0 {
		fields = append(fields, zap.Duration("duration", d))
	}
	return fields
}

func (l *loggingObserver) log(level zapcore.Level, msg string, s task.Snapshot) error {
	if ce := l.logger.Check(level, msg); ce != nil {
		ce.Write(snapshotFields(s)...)
	}
	return nil
}

func (l *loggingObserver) OnStarted(_ context.Context, s task.Snapshot) error {
	return l.log(zapcore.DebugLevel, "task started", s)
}

func (l *loggingObserver) OnRetried(_ context.Context, s task.Snapshot) error {
	return l.log(zapcore.WarnLevel, "task attempt failed, retrying", s)
}

func (l *loggingObserver) OnCompleted(_ context.Context, s task.Snapshot) error {
	return l.log(zapcore.DebugLevel, "task completed", s)
}

func (l *loggingObserver) OnFailed(_ context.Context, s task.Snapshot) error {
	return l.log(zapcore.ErrorLevel, "task failed", s)
}

func (l *loggingObserver) OnCancelled(_ context.Context, s task.Snapshot) error {
	return l.log(zapcore.InfoLevel, "task cancelled", s)
}
