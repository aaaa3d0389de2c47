package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dbcv/platform/internal/logging"
	"go.uber.org/zap"
)

// Lifecycle releases acquired resources in reverse order of acquisition.
// Every resource is registered right after it is acquired, so a failure
// halfway through startup releases exactly what was acquired so far.
type Lifecycle struct {
	mu       sync.Mutex
	releases []release
	done     bool
}

type release struct {
	name string
	fn   func(ctx context.Context) error
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Defer registers fn to run on Shutdown. It panics once Shutdown has run.
func (l *Lifecycle) Defer(name string, fn func(ctx context.Context) error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		panic(fmt.Sprintf("lifecycle: %s registered after shutdown", name))
	}
	l.releases = append(l.releases, release{name: name, fn: fn})
}

// Len is the number of resources still held.
func (l *Lifecycle) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.releases)
}

// Shutdown runs every release, last registered first. A failing release is
// logged and does not stop the ones after it. Only the first call does
// anything.
func (l *Lifecycle) Shutdown(ctx context.Context, logger *logging.Logger) error {
	l.mu.Lock()
	if l.done {
		l.mu.Unlock()
		return nil
	}
	l.done = true
	releases := l.releases
	l.releases = nil
	l.mu.Unlock()

	log := logger.Ctx(ctx)
	var errs []error
	for i := len(releases) - 1; i >= 0; i-- {
		r := releases[i]
		log.Debug("releasing resource", zap.String("resource", r.name))
		if err := r.fn(ctx); err != nil {
			log.Error("failed to release resource", zap.String("resource", r.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", r.name, err))
		}
	}
	return errors.Join(errs...)
}
