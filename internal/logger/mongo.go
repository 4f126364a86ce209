package logger

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/event"
	"go.uber.org/zap"
)

const maxLoggedCommand = 1000

// NewMongoMonitor logs driver commands at debug level, slow ones at warn and
// failures at error.
func NewMongoMonitor(l *zap.Logger, slow time.Duration) *event.CommandMonitor {
	return &event.CommandMonitor{
		Started: func(ctx context.Context, evt *event.CommandStartedEvent) {
			if !l.Core().Enabled(zap.DebugLevel) {
				return
			}
			cmd := evt.Command.String()
			if len(cmd) > maxLoggedCommand {
				cmd = cmd[:maxLoggedCommand] + "...[truncated]"
			}
			For(ctx, l).Debug("mongo command started",
				zap.String("command", evt.CommandName),
				zap.String("database", evt.DatabaseName),
				zap.Int64("mongo_request_id", evt.RequestID),
				zap.String("detail", cmd),
			)
		},
		Succeeded: func(ctx context.Context, evt *event.CommandSucceededEvent) {
			fields := []zap.Field{
				zap.String("command", evt.CommandName),
				zap.Duration("latency", evt.Duration),
				zap.Int64("mongo_request_id", evt.RequestID),
			}
			if slow > 0 && evt.Duration > slow {
				For(ctx, l).Warn("mongo command slow", fields...)
				return
			}
			For(ctx, l).Debug("mongo command succeeded", fields...)
		},
		Failed: func(ctx context.Context, evt *event.CommandFailedEvent) {
			For(ctx, l).Error("mongo command failed",
				zap.String("command", evt.CommandName),
				zap.Duration("latency", evt.Duration),
				zap.Int64("mongo_request_id", evt.RequestID),
				zap.String("failure", evt.Failure),
			)
		},
	}
}
