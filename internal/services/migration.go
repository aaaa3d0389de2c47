package services

import (
	"context"
	"strings"
	"time"

	"github.com/dbcv/platform/internal/logging"
	"github.com/dbcv/platform/internal/migrator"
	"go.uber.org/zap"
)

const (
	migrationAttempts   = 3
	migrationRetryDelay = 5 * time.Second
)

// RunMigrations applies every pending migration. Replicas starting together
// race for the golang-migrate advisory lock; the losers wait and retry, and
// by then usually find nothing left to apply.
func RunMigrations(ctx context.Context, databaseURL string, logger *logging.Logger) error {
	var lastErr error
	for attempt := 1; attempt <= migrationAttempts; attempt++ {
		version, applied, err := migrateUp(ctx, databaseURL, logger)
		if err == nil {
			if applied > 0 {
				logger.Info("migrations applied", zap.Int("version", version), zap.Int("version_applied", applied))
			} else {
				logger.Info("no migrations applied", zap.Int("version", version))
			}
			return nil
		}

		lastErr = err
		if !isLockRelatedError(err) {
			logger.Error("migration failed", zap.Error(err))
			return err
		}
		if attempt == migrationAttempts {
			break
		}

		logger.Warn("migration lock conflict, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("retry_delay", migrationRetryDelay),
			zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(migrationRetryDelay):
		}
	}

	logger.Error("migration failed after retries", zap.Int("attempts", migrationAttempts), zap.Error(lastErr))
	return lastErr
}

func migrateUp(ctx context.Context, databaseURL string, logger *logging.Logger) (int, int, error) {
	m, err := migrator.New(migrator.MigrationOpts{PostgresURL: databaseURL})
	if err != nil {
		return 0, 0, err
	}
	defer func() {
		if err := m.Close(ctx); err != nil {
			logger.Error("failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up(ctx, -1)
}

// RollbackMigrations reverts the last steps migrations, or all of them when
// steps is not positive.
func RollbackMigrations(ctx context.Context, databaseURL string, steps int, logger *logging.Logger) error {
	m, err := migrator.New(migrator.MigrationOpts{PostgresURL: databaseURL})
	if err != nil {
		return err
	}
	defer func() {
		if err := m.Close(ctx); err != nil {
			logger.Error("failed to close migrator", zap.Error(err))
		}
	}()

	version, reverted, err := m.Down(ctx, steps)
	if err != nil {
		logger.Error("rollback failed", zap.Int("version", version), zap.Error(err))
		return err
	}
	logger.Info("migrations rolled back", zap.Int("version", version), zap.Int("version_reverted", reverted))
	return nil
}

// isLockRelatedError matches golang-migrate's lock failures: database.ErrLocked
// ("can't acquire lock") and the postgres driver's "try lock failed".
func isLockRelatedError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "can't acquire lock") || strings.Contains(msg, "try lock failed")
}
