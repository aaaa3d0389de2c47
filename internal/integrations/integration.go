// Package integrations defines the contract every bot integration follows
// and the shared machinery (schema validation, credential pre-flight, the
// HTTP engine and the registry) the concrete adapters are built from.
package integrations

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BotLogger is the per-bot log sink handed to integrations.
type BotLogger interface {
	Error(ctx context.Context, msg string, fields ...zap.Field)
	Info(ctx context.Context, msg string, fields ...zap.Field)
}

// Integration is a pluggable unit calling one third-party capability.
// Execute never panics and never returns an error: every failure is
// reported inside the Envelope.
type Integration interface {
	Metadata() *Metadata
	Execute(ctx context.Context, config map[string]any, resolver credentials.Resolver, botID uuid.UUID, logger BotLogger) Envelope
}

// Guard runs fn and turns a panic into a 500 envelope.
func Guard(ctx context.Context, logger BotLogger, fn func() Envelope) (env Envelope) {
	defer func() {
		if r := recover(); r != nil {
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%v", r)
			}
			logger.Error(ctx, "Unexpected error",
				zap.Error(err),
				zap.ByteString("stack", debug.Stack()),
			)
			env = NewErrUnexpected(err).Envelope()
		}
	}()
	return fn()
}

// Fail logs a classified failure at error severity and returns its envelope.
func Fail(ctx context.Context, logger BotLogger, msg string, ierr *Error, fields ...zap.Field) Envelope {
	fields = append(fields,
		zap.String("reason", ierr.Kind.String()),
		zap.Int("error_code", ierr.Code),
		zap.String("description", ierr.Description),
	)
	if ierr.Cause != nil {
		fields = append(fields, zap.Error(ierr.Cause))
	}
	logger.Error(ctx, msg, fields...)
	return ierr.Envelope()
}
