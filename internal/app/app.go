package app

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dbcv/platform/internal/config"
	"github.com/dbcv/platform/internal/logging"
	"github.com/dbcv/platform/internal/services"
	"go.uber.org/zap"
)

const cleanupTimeout = 10 * time.Second

type App struct {
	config *config.Config
	logger *logging.Logger
}

type Option func(*App)

// WithLogger skips building a logger from the config.
func WithLogger(logger *logging.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

func New(cfg *config.Config, opts ...Option) *App {
	a := &App{config: cfg}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the server and blocks until SIGINT, SIGTERM, ctx cancellation
// or the workers exiting. Resources are released in reverse order of
// acquisition on every path out, including a failed startup.
func (a *App) Run(ctx context.Context) error {
	logger := a.logger
	if logger == nil {
		var err error
		logger, err = logging.NewLogger(
			logging.WithLogLevel(a.config.LogLevel),
			logging.WithServiceName("dbcv"),
		)
		if err != nil {
			return err
		}
		defer logger.Sync()
	}

	return run(ctx, a.config, logger)
}

func run(mainContext context.Context, cfg *config.Config, logger *logging.Logger) (exitErr error) {
	logger.Info("starting dbcv",
		zap.String("project", cfg.ProjectName),
		zap.String("config_path", cfg.ConfigFilePath()))
	logger.Info("configuration", cfg.LogConfigurationSummary()...)

	ctx, cancel := context.WithCancel(mainContext)
	defer cancel()

	builder := services.NewServiceBuilder(ctx, cfg, logger)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.WithoutCancel(mainContext), cleanupTimeout)
		defer shutdownCancel()
		if err := builder.Cleanup(shutdownCtx); err != nil {
			exitErr = errors.Join(exitErr, err)
		}
		logger.Info("dbcv shutdown complete")
	}()

	logger.Debug("building services")
	if err := builder.BuildAPIWorkers(); err != nil {
		logger.Error("failed to build workers", zap.Error(err))
		return err
	}
	supervisor, err := builder.Build()
	if err != nil {
		return err
	}

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(termChan)

	errChan := make(chan error, 1)
	go func() {
		errChan <- supervisor.Run(ctx)
	}()

	select {
	case <-termChan:
		logger.Info("shutdown signal received")
	case <-mainContext.Done():
		logger.Info("context cancelled")
	case err := <-errChan:
		if err != nil {
			logger.Error("workers exited unexpectedly", zap.Error(err))
		}
		return err
	}

	cancel()
	if err := <-errChan; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("error during graceful shutdown", zap.Error(err))
		return err
	}
	return nil
}
