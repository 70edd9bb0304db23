package broker

import (
	"context"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KgoLogger routes franz-go client logs through slog.
type KgoLogger struct {
	logger *slog.Logger
}

// NewKgoLogger wraps logger for use with kgo.WithLogger.
func NewKgoLogger(logger *slog.Logger) *KgoLogger {
	return &KgoLogger{logger: logger.With("component", "kafka")}
}

// Level reports the most verbose kgo level the slog handler accepts.
func (l *KgoLogger) Level() kgo.LogLevel {
	ctx := context.Background()
	switch {
	case l.logger.Enabled(ctx, slog.LevelDebug):
		return kgo.LogLevelDebug
	case l.logger.Enabled(ctx, slog.LevelWarn):
		return kgo.LogLevelWarn
	case l.logger.Enabled(ctx, slog.LevelError):
		return kgo.LogLevelError
	default:
		return kgo.LogLevelNone
	}
}

// Log implements kgo.Logger.
func (l *KgoLogger) Log(level kgo.LogLevel, msg string, keyvals ...any) {
	l.logger.Log(context.Background(), slogLevel(level), msg, keyvals...)
}

// franz-go info logs are per-connection chatter, so they land at debug.
func slogLevel(level kgo.LogLevel) slog.Level {
	switch level {
	case kgo.LogLevelError:
		return slog.LevelError
	case kgo.LogLevelWarn:
		return slog.LevelWarn
	default:
		return slog.LevelDebug
	}
}

var _ kgo.Logger = (*KgoLogger)(nil)
