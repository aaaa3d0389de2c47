package services

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dbcv/platform/internal/logging"
	"github.com/dbcv/platform/internal/worker"
	"go.uber.org/zap"
)

const httpShutdownTimeout = 10 * time.Second

// HTTPServerWorker serves the API until its context is cancelled, then
// drains in-flight requests.
type HTTPServerWorker struct {
	server *http.Server
	logger *logging.Logger
}

func NewHTTPServerWorker(server *http.Server, logger *logging.Logger) worker.Worker {
	return &HTTPServerWorker{
		server: server,
		logger: logger,
	}
}

func (w *HTTPServerWorker) Name() string {
	return "http-server"
}

func (w *HTTPServerWorker) Run(ctx context.Context) error {
	logger := w.logger.Ctx(ctx)
	logger.Info("http server listening", zap.String("addr", w.server.Addr))

	errChan := make(chan error, 1)
	go func() {
		if err := w.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down http server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), httpShutdownTimeout)
		defer cancel()

		if err := w.server.Shutdown(shutdownCtx); err != nil {
			logger.Error("error shutting down http server", zap.Error(err))
			return err
		}
		logger.Info("http server shut down")
		return nil

	case err := <-errChan:
		logger.Error("http server error", zap.Error(err))
		return err
	}
}
