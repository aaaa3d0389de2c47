// Package botlog is the per-bot log sink handed to integrations.
package botlog

import (
	"context"

	"github.com/dbcv/platform/internal/integrations"
	"github.com/dbcv/platform/internal/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const truncatedSuffix = "…"

type Logger struct {
	logger        *logging.Logger
	botID         uuid.UUID
	integrationID string
	maxSize       int
}

var _ integrations.BotLogger = (*Logger)(nil)

// New returns a logger tagging every entry with the bot and integration.
// Messages longer than maxSize runes are truncated; maxSize <= 0 disables
// truncation.
func New(logger *logging.Logger, botID uuid.UUID, integrationID string, maxSize int) *Logger {
	return &Logger{
		logger:        logger,
		botID:         botID,
		integrationID: integrationID,
		maxSize:       maxSize,
	}
}

func (l *Logger) Error(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Ctx(ctx).Error(l.truncate(msg), l.tag(fields)...)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...zap.Field) {
	l.logger.Ctx(ctx).Info(l.truncate(msg), l.tag(fields)...)
}

func (l *Logger) tag(fields []zap.Field) []zap.Field {
	return append([]zap.Field{
		zap.String("bot_id", l.botID.String()),
		zap.String("integration_id", l.integrationID),
	}, fields...)
}

func (l *Logger) truncate(msg string) string {
	return Truncate(msg, l.maxSize)
}

// Truncate cuts s to at most max runes, marking the cut with an ellipsis.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max == 1 {
		return truncatedSuffix
	}
	return string(runes[:max-1]) + truncatedSuffix
}
