// Package broker moves chat messages between the API, the socket app and
// the bot runtimes over Redis streams.
package broker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dbcv/platform/internal/idgen"
	"github.com/dbcv/platform/internal/logging"
	"github.com/dbcv/platform/internal/redis"
	"go.uber.org/zap"
)

var ErrClosed = errors.New("broker: closed")

const (
	defaultBlock     = 500 * time.Millisecond
	defaultCount     = 10
	defaultClaimIdle = 30 * time.Second
)

// Stream is one Redis stream and the consumer group reading it.
type Stream struct {
	Name  string
	Group string
}

// Message is the envelope carried on every stream.
type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	BotID     string `json:"bot_id"`
	Type      string `json:"type"`
	Payload   string `json:"payload"`

	// StreamID is the id Redis assigned on XADD. Empty before publishing.
	StreamID string `json:"-"`
}

func (m Message) values() map[string]any {
	return map[string]any{
		"id":         m.ID,
		"session_id": m.SessionID,
		"bot_id":     m.BotID,
		"type":       m.Type,
		"payload":    m.Payload,
	}
}

func messageFrom(xmsg redis.XMessage) Message {
	str := func(key string) string {
		s, _ := xmsg.Values[key].(string)
		return s
	}
	return Message{
		ID:        str("id"),
		SessionID: str("session_id"),
		BotID:     str("bot_id"),
		Type:      str("type"),
		Payload:   str("payload"),
		StreamID:  xmsg.ID,
	}
}

// Handler processes one message. A nil error acknowledges it; otherwise it
// stays pending in the group until it is claimed again.
type Handler func(ctx context.Context, msg Message) error

type brokerOptions struct {
	logger    *logging.Logger
	block     time.Duration
	count     int64
	claimIdle time.Duration
}

func WithLogger(logger *logging.Logger) func(*brokerOptions) {
	return func(o *brokerOptions) {
		o.logger = logger
	}
}

// WithBlock sets how long one XREADGROUP waits. Cancellation is noticed
// between reads, so this bounds shutdown latency.
func WithBlock(block time.Duration) func(*brokerOptions) {
	return func(o *brokerOptions) {
		o.block = block
	}
}

// WithClaimIdle sets how long a delivered message may stay unacknowledged
// before Consume claims it again. Zero disables redelivery.
func WithClaimIdle(idle time.Duration) func(*brokerOptions) {
	return func(o *brokerOptions) {
		o.claimIdle = idle
	}
}

type Broker struct {
	brokerOptions
	client  redis.Cmdable
	streams []Stream
	closed  atomic.Bool
}

// New returns a broker over client. Start must be called before Consume to
// make sure the consumer groups of streams exist.
func New(client redis.Cmdable, streams []Stream, opts ...func(*brokerOptions)) *Broker {
	options := brokerOptions{
		block:     defaultBlock,
		count:     defaultCount,
		claimIdle: defaultClaimIdle,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Broker{
		brokerOptions: options,
		client:        client,
		streams:       streams,
	}
}

// Start creates the consumer groups, and the streams with them. Groups that
// already exist are left alone.
func (b *Broker) Start(ctx context.Context) error {
	for _, s := range b.streams {
		err := b.client.XGroupCreateMkStream(ctx, s.Name, s.Group, "0").Err()
		if err != nil && !isBusyGroup(err) {
			return fmt.Errorf("create group %s on %s: %w", s.Group, s.Name, err)
		}
	}
	return nil
}

// Publish appends msg to stream and returns the Redis id.
func (b *Broker) Publish(ctx context.Context, stream string, msg Message) (string, error) {
	if b.closed.Load() {
		return "", ErrClosed
	}
	if msg.ID == "" {
		msg.ID = idgen.Message()
	}
	id, err := b.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: msg.values(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", stream, err)
	}
	return id, nil
}

// Consume reads stream as consumer of group until ctx is done, calling
// handler for each message in order. Messages left pending longer than the
// claim idle time, by this or any other consumer, are claimed and handled
// again. It returns nil on cancellation.
func (b *Broker) Consume(ctx context.Context, stream, group, consumer string, handler Handler) error {
	var lastClaim time.Time
	for {
		if ctx.Err() != nil || b.closed.Load() {
			return nil
		}

		if b.claimIdle > 0 && time.Since(lastClaim) >= b.claimIdle {
			lastClaim = time.Now()
			claimed, err := b.claim(ctx, stream, group, consumer)
			if err == nil {
				err = b.handle(ctx, stream, group, claimed, handler)
			}
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}

		res, err := b.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    group,
			Consumer: consumer,
			Streams:  []string{stream, ">"},
			Count:    b.count,
			Block:    b.block,
		}).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read %s: %w", stream, err)
		}

		for _, xstream := range res {
			if err := b.handle(ctx, stream, group, xstream.Messages, handler); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}

// claim takes over every entry of the group pending longer than claimIdle.
func (b *Broker) claim(ctx context.Context, stream, group, consumer string) ([]redis.XMessage, error) {
	var claimed []redis.XMessage
	start := "0-0"
	for {
		msgs, next, err := b.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   stream,
			Group:    group,
			Consumer: consumer,
			MinIdle:  b.claimIdle,
			Start:    start,
			Count:    b.count,
		}).Result()
		if err != nil {
			return nil, fmt.Errorf("claim pending on %s: %w", stream, err)
		}
		claimed = append(claimed, msgs...)
		if next == "" || next == "0-0" {
			return claimed, nil
		}
		start = next
	}
}

// handle acks each message its handler accepts. A handler error leaves the
// message pending for a later claim.
func (b *Broker) handle(ctx context.Context, stream, group string, msgs []redis.XMessage, handler Handler) error {
	for _, xmsg := range msgs {
		msg := messageFrom(xmsg)
		if err := handler(ctx, msg); err != nil {
			b.logError(ctx, "broker handler error", err,
				zap.String("stream", stream),
				zap.String("stream_id", xmsg.ID),
			)
			continue
		}
		if err := b.client.XAck(ctx, stream, group, xmsg.ID).Err(); err != nil {
			return fmt.Errorf("ack %s on %s: %w", xmsg.ID, stream, err)
		}
	}
	return nil
}

// Close stops publishing and makes running Consume loops return after their
// current read. The Redis client is owned by the caller.
func (b *Broker) Close() error {
	b.closed.Store(true)
	return nil
}

func (b *Broker) logError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	if b.logger == nil {
		return
	}
	b.logger.Ctx(ctx).Error(msg, append(fields, zap.Error(err))...)
}

func isBusyGroup(err error) bool {
	return strings.HasPrefix(err.Error(), "BUSYGROUP")
}
