package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Logger is the subset of *logging.Logger the supervisor needs.
type Logger interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Debug(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
}

// WorkerSupervisor runs workers side by side and records their health. A
// failing worker is marked failed but does not stop the others, so the
// HTTP server keeps answering /healthz with the failure.
type WorkerSupervisor struct {
	workers         []Worker
	names           map[string]struct{}
	health          *HealthTracker
	logger          Logger
	shutdownTimeout time.Duration
}

type SupervisorOption func(*WorkerSupervisor)

// WithShutdownTimeout bounds how long Run waits for workers after ctx is
// cancelled. Zero waits forever.
func WithShutdownTimeout(timeout time.Duration) SupervisorOption {
	return func(s *WorkerSupervisor) {
		s.shutdownTimeout = timeout
	}
}

// WithHealthTracker shares an existing tracker, typically the one already
// handed to the /healthz route.
func WithHealthTracker(health *HealthTracker) SupervisorOption {
	return func(s *WorkerSupervisor) {
		s.health = health
	}
}

func NewWorkerSupervisor(logger Logger, opts ...SupervisorOption) *WorkerSupervisor {
	s := &WorkerSupervisor{
		names:  make(map[string]struct{}),
		health: NewHealthTracker(),
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register adds a worker. Names must be unique; a duplicate is a wiring bug
// and panics.
func (s *WorkerSupervisor) Register(w Worker) {
	if _, exists := s.names[w.Name()]; exists {
		panic(fmt.Sprintf("worker %s already registered", w.Name()))
	}
	s.names[w.Name()] = struct{}{}
	s.workers = append(s.workers, w)
	s.logger.Debug("worker registered", zap.String("worker", w.Name()))
}

func (s *WorkerSupervisor) GetHealthTracker() *HealthTracker {
	return s.health
}

// Run starts every worker and blocks until ctx is cancelled or all workers
// have returned. After cancellation it waits for the workers, bounded by the
// shutdown timeout when one is set.
func (s *WorkerSupervisor) Run(ctx context.Context) error {
	if len(s.workers) == 0 {
		s.logger.Warn("no workers registered")
		return nil
	}

	s.logger.Info("starting workers", zap.Int("count", len(s.workers)))

	var wg sync.WaitGroup
	for _, w := range s.workers {
		wg.Add(1)
		s.health.MarkHealthy(w.Name())
		go func(w Worker) {
			defer wg.Done()
			s.run(ctx, w)
		}(w)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Warn("all workers have exited")
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("context cancelled, shutting down workers")
	if s.shutdownTimeout <= 0 {
		<-done
		return nil
	}

	select {
	case <-done:
		s.logger.Info("all workers shutdown gracefully")
		return nil
	case <-time.After(s.shutdownTimeout):
		s.logger.Warn("shutdown timeout exceeded, some workers may still be running",
			zap.Duration("timeout", s.shutdownTimeout))
		return fmt.Errorf("shutdown timeout exceeded (%v)", s.shutdownTimeout)
	}
}

func (s *WorkerSupervisor) run(ctx context.Context, w Worker) {
	name := w.Name()
	s.logger.Info("worker starting", zap.String("worker", name))

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("worker failed", zap.String("worker", name), zap.Error(err))
		s.health.MarkFailed(name)
		return
	}
	s.logger.Info("worker stopped gracefully", zap.String("worker", name))
}
