package audit

import (
	"context"
	"time"

	"honeypot-guard/internal/storage"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

// Logger records moderation events to the diagnostic store and mirrors them
// to the process log at the matching zap level.
type Logger struct {
	store  *storage.Store
	logger *zap.Logger
}

func NewLogger(store *storage.Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger}
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	entry := storage.AuditLog{
		GuildID:   guildID,
		UserID:    userID,
		Level:     level,
		Event:     event,
		Details:   details,
		CreatedAt: time.Now(),
	}
	if l.store != nil {
		_ = l.store.AddAuditLog(ctx, entry)
	}

	fields := []zap.Field{
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details),
	}
	if level == LevelWarn {
		l.logger.Warn("audit", fields...)
		return
	}
	l.logger.Info("audit", fields...)
}

// RunRetention deletes audit entries older than retentionDays on the given
// cadence until ctx is cancelled.
func (l *Logger) RunRetention(ctx context.Context, interval time.Duration, retentionDays int) {
	if l.store == nil || retentionDays <= 0 {
		return
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := l.store.CleanupAuditLogs(ctx, retentionDays); err != nil {
				l.logger.Error("audit retention cleanup failed", zap.Error(err))
			}
		}
	}
}
