package worker

import "context"

// Worker is a long-running part of the server: the HTTP listener, the socket
// app consumer. Run blocks until ctx is cancelled or the worker fails; nil
// and context.Canceled both mean a clean stop.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

type funcWorker struct {
	name string
	run  func(ctx context.Context) error
}

func (w funcWorker) Name() string { return w.name }

func (w funcWorker) Run(ctx context.Context) error { return w.run(ctx) }

// Func turns a blocking function into a named Worker.
func Func(name string, run func(ctx context.Context) error) Worker {
	return funcWorker{name: name, run: run}
}
