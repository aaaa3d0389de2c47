// Package socketapp serves the realtime chat sockets: frames from browsers go
// to the user stream, bot replies from the bot stream go back to every socket
// of the session.
package socketapp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dbcv/platform/internal/broker"
	"github.com/dbcv/platform/internal/idgen"
	"github.com/dbcv/platform/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 16

	messageTypeText = "text"
)

var ErrAlreadyStarted = errors.New("socketapp: already started")

type Config struct {
	Broker     *broker.Broker
	UserStream broker.Stream
	BotStream  broker.Stream
	Logger     *logging.Logger
	// CheckOrigin decides which browser origins may open a socket. Nil
	// allows same-origin requests only.
	CheckOrigin func(r *http.Request) bool
}

type App struct {
	broker     *broker.Broker
	userStream broker.Stream
	botStream  broker.Stream
	logger     *logging.Logger
	upgrader   websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]map[*client]struct{}

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *App {
	return &App{
		broker:     cfg.Broker,
		userStream: cfg.UserStream,
		botStream:  cfg.BotStream,
		logger:     cfg.Logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
		sessions: make(map[string]map[*client]struct{}),
	}
}

// Start launches consumption of the bot stream. It returns immediately.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	a.done = make(chan struct{})

	consumer := idgen.Consumer("socketapp")
	go func() {
		defer close(a.done)
		err := a.broker.Consume(ctx, a.botStream.Name, a.botStream.Group, consumer, a.deliver)
		if err != nil {
			a.logger.Ctx(ctx).Error("bot stream consumption stopped", zap.Error(err))
		}
	}()

	a.logger.Ctx(ctx).Info("socket app started", zap.String("consumer", consumer))
	return nil
}

// Stop cancels consumption and closes every open socket.
func (a *App) Stop(ctx context.Context) error {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	sessions := a.sessions
	a.sessions = make(map[string]map[*client]struct{})
	a.mu.Unlock()

	for _, clients := range sessions {
		for c := range clients {
			c.close()
		}
	}

	if cancel == nil {
		return nil
	}
	cancel()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Handler upgrades GET /ws/:session_id. An optional bot_id query parameter
// is attached to every message published from the socket.
func (a *App) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		if sessionID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"message": "session_id is required"})
			return
		}

		conn, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// the upgrader already wrote the response
			a.logger.Ctx(c.Request.Context()).Info("websocket upgrade failed", zap.Error(err))
			return
		}

		cl := &client{
			app:       a,
			conn:      conn,
			sessionID: sessionID,
			botID:     c.Query("bot_id"),
			send:      make(chan []byte, sendBuffer),
			closed:    make(chan struct{}),
		}
		a.register(cl)

		go cl.writePump()
		cl.readPump(context.WithoutCancel(c.Request.Context()))
	}
}

// Connections returns the number of open sockets of a session.
func (a *App) Connections(sessionID string) int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions[sessionID])
}

func (a *App) register(c *client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	clients, ok := a.sessions[c.sessionID]
	if !ok {
		clients = make(map[*client]struct{})
		a.sessions[c.sessionID] = clients
	}
	clients[c] = struct{}{}
}

func (a *App) unregister(c *client) {
	a.mu.Lock()
	defer a.mu.Unlock()
	clients := a.sessions[c.sessionID]
	delete(clients, c)
	if len(clients) == 0 {
		delete(a.sessions, c.sessionID)
	}
}

func (a *App) deliver(ctx context.Context, msg broker.Message) error {
	frame, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	a.mu.RLock()
	clients := make([]*client, 0, len(a.sessions[msg.SessionID]))
	for c := range a.sessions[msg.SessionID] {
		clients = append(clients, c)
	}
	a.mu.RUnlock()

	for _, c := range clients {
		if !c.enqueue(frame) {
			a.logger.Ctx(ctx).Info("dropping slow socket", zap.String("session_id", c.sessionID))
			a.unregister(c)
			c.close()
		}
	}
	return nil
}

func (a *App) publish(ctx context.Context, c *client, payload []byte) {
	_, err := a.broker.Publish(ctx, a.userStream.Name, broker.Message{
		SessionID: c.sessionID,
		BotID:     c.botID,
		Type:      messageTypeText,
		Payload:   string(payload),
	})
	if err != nil {
		a.logger.Ctx(ctx).Error("failed to publish user message",
			zap.String("session_id", c.sessionID),
			zap.Error(err),
		)
	}
}
