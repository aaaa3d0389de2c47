package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/extra/redisotel/v9"
	r "github.com/redis/go-redis/v9"
)

// Reexport go-redis's Nil constant for DX purposes.
const (
	Nil = r.Nil
)

type (
	Cmdable        = r.Cmdable
	Pipeliner      = r.Pipeliner
	XAddArgs       = r.XAddArgs
	XReadGroupArgs = r.XReadGroupArgs
	XAutoClaimArgs = r.XAutoClaimArgs
	XStream        = r.XStream
	XMessage       = r.XMessage
)

type Client interface {
	Cmdable
	Close() error
}

// NewClient connects to the Redis server described by a redis:// or
// rediss:// URL, verifies connectivity and installs tracing.
func NewClient(ctx context.Context, redisURL string) (Client, error) {
	options, err := r.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := r.NewClient(options)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	if err := redisotel.InstrumentTracing(client); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis tracing instrumentation failed: %w", err)
	}

	return client, nil
}
