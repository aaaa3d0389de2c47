package worker_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dbcv/platform/internal/util/testutil"
	"github.com/dbcv/platform/internal/worker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newSupervisor(opts ...worker.SupervisorOption) (*worker.WorkerSupervisor, *observer.ObservedLogs) {
	core, logs := observer.New(zapcore.DebugLevel)
	return worker.NewWorkerSupervisor(zap.New(core), opts...), logs
}

func blocking(name string) worker.Worker {
	return worker.Func(name, func(ctx context.Context) error {
		<-ctx.Done()
		return nil
	})
}

func TestLoggingLoggerSatisfiesLogger(t *testing.T) {
	var _ worker.Logger = testutil.CreateTestLogger(t)
}

func TestFunc(t *testing.T) {
	called := false
	w := worker.Func("socket-app", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.Equal(t, "socket-app", w.Name())
	require.NoError(t, w.Run(context.Background()))
	assert.True(t, called)
}

func TestHealthTracker(t *testing.T) {
	health := worker.NewHealthTracker()
	assert.True(t, health.IsHealthy(), "empty tracker is healthy")

	health.MarkHealthy("http-server")
	health.MarkHealthy("socket-app")
	assert.True(t, health.IsHealthy())
	assert.Equal(t, worker.StatusHealthy, health.GetStatus()["status"])

	health.MarkFailed("socket-app")
	assert.False(t, health.IsHealthy())

	status := health.GetStatus()
	assert.Equal(t, worker.StatusFailed, status["status"])
	workers := status["workers"].(map[string]worker.Health)
	assert.Equal(t, worker.StatusHealthy, workers["http-server"].Status)
	assert.Equal(t, worker.StatusFailed, workers["socket-app"].Status)
	assert.False(t, workers["socket-app"].UpdatedAt.IsZero())
}

func TestHealthTracker_ConcurrentAccess(t *testing.T) {
	health := worker.NewHealthTracker()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				health.MarkHealthy("w")
			} else {
				health.MarkFailed("w")
			}
			health.IsHealthy()
			health.GetStatus()
		}(i)
	}
	wg.Wait()
}

func TestWorkerSupervisor_RegisterDuplicate(t *testing.T) {
	supervisor, _ := newSupervisor()
	supervisor.Register(blocking("http-server"))

	assert.PanicsWithValue(t, "worker http-server already registered", func() {
		supervisor.Register(blocking("http-server"))
	})
}

func TestWorkerSupervisor_NoWorkers(t *testing.T) {
	supervisor, logs := newSupervisor()

	require.NoError(t, supervisor.Run(context.Background()))
	assert.Equal(t, 1, logs.FilterMessage("no workers registered").Len())
}

func TestWorkerSupervisor_RunUntilCancelled(t *testing.T) {
	supervisor, _ := newSupervisor()
	supervisor.Register(blocking("http-server"))
	supervisor.Register(blocking("socket-app"))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- supervisor.Run(ctx) }()

	require.Eventually(t, func() bool {
		status := supervisor.GetHealthTracker().GetStatus()
		return len(status["workers"].(map[string]worker.Health)) == 2
	}, time.Second, 10*time.Millisecond)
	assert.True(t, supervisor.GetHealthTracker().IsHealthy())

	cancel()
	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("supervisor did not stop")
	}
}

func TestWorkerSupervisor_FailedWorkerKeepsOthersRunning(t *testing.T) {
	health := worker.NewHealthTracker()
	supervisor, logs := newSupervisor(worker.WithHealthTracker(health))

	var stopped atomic.Bool
	supervisor.Register(worker.Func("http-server", func(ctx context.Context) error {
		<-ctx.Done()
		stopped.Store(true)
		return nil
	}))
	supervisor.Register(worker.Func("socket-app", func(ctx context.Context) error {
		return errors.New("redis gone")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- supervisor.Run(ctx) }()

	require.Eventually(t, func() bool { return !health.IsHealthy() }, time.Second, 10*time.Millisecond)
	assert.False(t, stopped.Load(), "healthy worker must keep running")

	cancel()
	require.NoError(t, <-errc)
	assert.True(t, stopped.Load())
	assert.Equal(t, 1, logs.FilterMessage("worker failed").Len())
}

func TestWorkerSupervisor_AllWorkersExit(t *testing.T) {
	supervisor, logs := newSupervisor()
	supervisor.Register(worker.Func("once", func(ctx context.Context) error { return nil }))
	supervisor.Register(worker.Func("cancelled", func(ctx context.Context) error { return context.Canceled }))

	require.NoError(t, supervisor.Run(context.Background()))
	assert.True(t, supervisor.GetHealthTracker().IsHealthy())
	assert.Equal(t, 1, logs.FilterMessage("all workers have exited").Len())
}

func TestWorkerSupervisor_ShutdownTimeout(t *testing.T) {
	supervisor, _ := newSupervisor(worker.WithShutdownTimeout(50 * time.Millisecond))

	release := make(chan struct{})
	defer close(release)
	supervisor.Register(worker.Func("stuck", func(ctx context.Context) error {
		<-release
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := supervisor.Run(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown timeout exceeded")
	assert.Less(t, time.Since(start), time.Second)
}

func TestWorkerSupervisor_ShutdownWithinTimeout(t *testing.T) {
	supervisor, _ := newSupervisor(worker.WithShutdownTimeout(time.Second))
	supervisor.Register(worker.Func("slow", func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, supervisor.Run(ctx))
}
