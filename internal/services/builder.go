package services

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dbcv/platform/internal/apirouter"
	"github.com/dbcv/platform/internal/broker"
	"github.com/dbcv/platform/internal/config"
	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/database"
	"github.com/dbcv/platform/internal/httpclient"
	"github.com/dbcv/platform/internal/integrations"
	"github.com/dbcv/platform/internal/integrations/dbcv"
	"github.com/dbcv/platform/internal/integrations/openweathermap"
	"github.com/dbcv/platform/internal/integrations/telegram"
	"github.com/dbcv/platform/internal/logging"
	"github.com/dbcv/platform/internal/redis"
	"github.com/dbcv/platform/internal/socketapp"
	"github.com/dbcv/platform/internal/storage"
	"github.com/dbcv/platform/internal/worker"
	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"
)

const (
	sentryFlushTimeout = 2 * time.Second
	readHeaderTimeout  = 10 * time.Second
)

// ServiceBuilder acquires the server's infrastructure and registers its
// workers. Every acquired resource is handed to the Lifecycle, which
// releases them in reverse order on Cleanup.
type ServiceBuilder struct {
	ctx        context.Context
	cfg        *config.Config
	logger     *logging.Logger
	supervisor *worker.WorkerSupervisor
	lifecycle  *Lifecycle
	migrate    func(ctx context.Context, databaseURL string, logger *logging.Logger) error

	// Built holds what BuildAPIWorkers produced, for inspection.
	Built Components
}

// Components are the long-lived pieces wired into the API.
type Components struct {
	Resolver  credentials.Resolver
	Broker    *broker.Broker
	SocketApp *socketapp.App
	HTTPPool  *httpclient.Pool
	Storage   *storage.Storage
	Registry  *integrations.Registry
	Router    http.Handler
}

type BuilderOption func(*ServiceBuilder)

// WithMigrations replaces the migration step, mainly for tests.
func WithMigrations(migrate func(ctx context.Context, databaseURL string, logger *logging.Logger) error) BuilderOption {
	return func(b *ServiceBuilder) {
		b.migrate = migrate
	}
}

func NewServiceBuilder(ctx context.Context, cfg *config.Config, logger *logging.Logger, opts ...BuilderOption) *ServiceBuilder {
	b := &ServiceBuilder{
		ctx:        ctx,
		cfg:        cfg,
		logger:     logger,
		supervisor: worker.NewWorkerSupervisor(logger, worker.WithShutdownTimeout(httpShutdownTimeout+5*time.Second)),
		lifecycle:  NewLifecycle(),
		migrate:    RunMigrations,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildAPIWorkers acquires, in order: the secret box, the database pool and
// its migrations, Redis, the broker, the socket app, the outbound HTTP pool
// and object storage. It then builds the integration registry and the router
// and registers the HTTP server worker. On error everything acquired so far
// is still registered for Cleanup.
func (b *ServiceBuilder) BuildAPIWorkers() error {
	ctx := b.ctx
	cfg := b.cfg

	if cfg.SentryDSN != "" {
		b.logger.Debug("initializing sentry")
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:        cfg.SentryDSN,
			ServerName: cfg.ProjectName,
		}); err != nil {
			b.logger.Error("sentry initialization failed", zap.Error(err))
			return err
		}
		b.lifecycle.Defer("sentry", func(ctx context.Context) error {
			sentry.Flush(sentryFlushTimeout)
			return nil
		})
	}

	b.logger.Debug("loading secret box key")
	key, err := cfg.SecretBoxKeyBytes()
	if err != nil {
		b.logger.Error("secret box key unavailable", zap.Error(err))
		return err
	}
	box, err := credentials.NewSecretBox(key)
	if err != nil {
		return err
	}

	b.logger.Debug("opening database pool", zap.Int32("max_conns", cfg.DBMaxConns()))
	db, err := database.Open(ctx, cfg.DatabaseURL, cfg.DBMaxConns())
	if err != nil {
		b.logger.Error("database initialization failed", zap.Error(err))
		return err
	}
	b.lifecycle.Defer("database", func(ctx context.Context) error {
		db.Close()
		return nil
	})

	if err := b.migrate(ctx, cfg.DatabaseURL, b.logger); err != nil {
		return err
	}
	resolver := credentials.NewPGStore(db, box)

	b.logger.Debug("initializing redis client")
	redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
	if err != nil {
		b.logger.Error("redis client initialization failed", zap.Error(err))
		return err
	}
	b.lifecycle.Defer("redis", func(ctx context.Context) error {
		return redisClient.Close()
	})

	userStream := broker.Stream{Name: cfg.Streams.UserStreamName, Group: cfg.Streams.UserStreamGroup}
	botStream := broker.Stream{Name: cfg.Streams.BotStreamName, Group: cfg.Streams.BotStreamGroup}
	emitterStream := broker.Stream{Name: cfg.Streams.EmitterStreamName, Group: cfg.Streams.EmitterStreamGroup}

	b.logger.Debug("starting broker")
	msgBroker := broker.New(redisClient, []broker.Stream{userStream, botStream, emitterStream}, broker.WithLogger(b.logger))
	if err := msgBroker.Start(ctx); err != nil {
		b.logger.Error("broker start failed", zap.Error(err))
		return err
	}
	b.lifecycle.Defer("broker", func(ctx context.Context) error {
		return msgBroker.Close()
	})

	corsPolicy := apirouter.NewCORSPolicy(cfg.CORSAllowedOrigins)

	b.logger.Debug("starting socket app")
	socket := socketapp.New(socketapp.Config{
		Broker:     msgBroker,
		UserStream: userStream,
		BotStream:  botStream,
		Logger:     b.logger,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || corsPolicy.AllowsOrigin(origin)
		},
	})
	if err := socket.Start(ctx); err != nil {
		b.logger.Error("socket app start failed", zap.Error(err))
		return err
	}
	b.lifecycle.Defer("socket app", socket.Stop)

	b.logger.Debug("creating outbound http pool", zap.Int("proxies", len(cfg.Proxies)))
	httpPool, err := httpclient.New(httpclient.Config{
		Proxies: cfg.Proxies,
	})
	if err != nil {
		b.logger.Error("http pool initialization failed", zap.Error(err))
		return err
	}
	b.lifecycle.Defer("http client pool", func(ctx context.Context) error {
		return httpPool.Close()
	})

	objects, err := storage.New(ctx, storage.Config{
		Endpoint:       cfg.S3.Endpoint,
		PublicEndpoint: cfg.S3.PublicEndpoint,
		Region:         cfg.S3.Region,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		Bucket:         cfg.S3.Bucket,
	})
	if err != nil {
		b.logger.Error("object storage initialization failed", zap.Error(err))
		return err
	}

	registry, err := b.buildRegistry(httpPool)
	if err != nil {
		b.logger.Error("integration registry setup failed", zap.Error(err))
		return err
	}
	b.logger.Info("integrations registered", zap.Int("count", registry.Len()))

	router := apirouter.NewRouter(
		apirouter.RouterConfig{
			ServiceName:   "dbcv",
			APIPrefix:     cfg.APIPrefix,
			JWTSecret:     cfg.SecretKey,
			GinMode:       cfg.GinMode,
			CORS:          corsPolicy,
			StaticRoot:    cfg.StaticRoot,
			MediaURL:      cfg.MediaURL,
			MaxLogSize:    cfg.MaxLogSize,
			SentryEnabled: cfg.SentryDSN != "",
		},
		apirouter.RouterDeps{
			Logger:   b.logger,
			Registry: registry,
			Resolver: resolver,
			Health:   b.supervisor.GetHealthTracker(),
			Socket:   socket.Handler(),
			Objects:  objects,
			IconURL:  objects.PublicURL,
		},
	)

	b.supervisor.Register(NewHTTPServerWorker(&http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}, b.logger))

	b.Built = Components{
		Resolver:  resolver,
		Broker:    msgBroker,
		SocketApp: socket,
		HTTPPool:  httpPool,
		Storage:   objects,
		Registry:  registry,
		Router:    router,
	}
	return nil
}

func (b *ServiceBuilder) buildRegistry(pool *httpclient.Pool) (*integrations.Registry, error) {
	timeout := b.cfg.OutboundTimeout()
	registry, err := integrations.NewRegistryBuilder().
		Register(openweathermap.All(openweathermap.Options{
			Client:  pool.Resty(),
			Timeout: timeout,
		})...).
		Register(telegram.All(telegram.Options{
			Client:  pool.HTTP(),
			Timeout: timeout,
		})...).
		Register(dbcv.All(dbcv.Options{
			Client:  pool.Resty(),
			BaseURL: b.cfg.MCP.ServiceURL,
			Token:   b.cfg.MCP.ServiceToken,
			Timeout: b.cfg.MCPTimeout(),
		})...).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building integration registry: %w", err)
	}
	return registry, nil
}

func (b *ServiceBuilder) Build() (*worker.WorkerSupervisor, error) {
	return b.supervisor, nil
}

// Cleanup releases everything BuildAPIWorkers acquired, newest first.
func (b *ServiceBuilder) Cleanup(ctx context.Context) error {
	return b.lifecycle.Shutdown(ctx, b.logger)
}

// Held reports how many resources are waiting for Cleanup.
func (b *ServiceBuilder) Held() int {
	return b.lifecycle.Len()
}
