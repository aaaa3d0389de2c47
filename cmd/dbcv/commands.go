package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dbcv/platform/internal/apirouter"
	"github.com/dbcv/platform/internal/app"
	"github.com/dbcv/platform/internal/config"
	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/database"
	"github.com/dbcv/platform/internal/logging"
	"github.com/dbcv/platform/internal/services"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
)

var errThrowawaySecretKey = errors.New("SECRET_KEY is not configured: a token signed with a generated key would be rejected by the server")

type commandDeps struct {
	loadConfig func(path string) (*config.Config, error)
	stdout     io.Writer
}

func loadConfig(path string) (*config.Config, error) {
	return config.Parse(config.Flags{Config: path})
}

func newCommand(deps commandDeps) *cli.Command {
	withConfig := func(c *cli.Command) (*config.Config, error) {
		return deps.loadConfig(c.String("config"))
	}

	serve := func(ctx context.Context, c *cli.Command) error {
		cfg, err := withConfig(c)
		if err != nil {
			return err
		}
		return app.New(cfg).Run(ctx)
	}

	return &cli.Command{
		Name:    "dbcv",
		Usage:   "DBCV bot platform backend",
		Version: version,
		Writer:  deps.stdout,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file",
				Sources: cli.EnvVars("CONFIG"),
			},
		},
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the API server",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "Database migrations",
				Commands: []*cli.Command{
					{
						Name:  "up",
						Usage: "Apply all pending migrations",
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := withConfig(c)
							if err != nil {
								return err
							}
							logger, err := logging.NewLogger(logging.WithLogLevel(cfg.LogLevel))
							if err != nil {
								return err
							}
							defer logger.Sync()
							return services.RunMigrations(ctx, cfg.DatabaseURL, logger)
						},
					},
					{
						Name:  "down",
						Usage: "Roll back applied migrations",
						Flags: []cli.Flag{
							&cli.IntFlag{
								Name:  "steps",
								Usage: "Number of migrations to roll back, 0 for all",
								Value: 1,
							},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							cfg, err := withConfig(c)
							if err != nil {
								return err
							}
							logger, err := logging.NewLogger(logging.WithLogLevel(cfg.LogLevel))
							if err != nil {
								return err
							}
							defer logger.Sync()
							return services.RollbackMigrations(ctx, cfg.DatabaseURL, int(c.Int("steps")), logger)
						},
					},
				},
			},
			{
				Name:  "token",
				Usage: "Mint an API access token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "subject",
						Usage:    "Token subject, usually the user id",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "ttl",
						Usage: "Token lifetime (defaults to ACCESS_TOKEN_EXPIRE_MINUTES)",
					},
				},
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, err := withConfig(c)
					if err != nil {
						return err
					}
					if cfg.SecretKeyGenerated() {
						return errThrowawaySecretKey
					}
					ttl := c.Duration("ttl")
					if ttl <= 0 {
						ttl = cfg.AccessTokenTTL()
					}
					token, err := apirouter.JWT.New(cfg.SecretKey, apirouter.JWTClaims{Subject: c.String("subject")}, ttl)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintln(deps.stdout, token)
					return err
				},
			},
			{
				Name:  "credentials",
				Usage: "Manage bot credentials",
				Commands: []*cli.Command{
					{
						Name:  "put",
						Usage: "Seal and store credentials for a bot",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "bot", Usage: "Bot id (uuid)", Required: true},
							&cli.StringFlag{Name: "provider", Usage: "Provider, e.g. openweathermap", Required: true},
							&cli.StringFlag{Name: "strategy", Usage: "Strategy, e.g. api_key", Required: true},
							&cli.StringFlag{Name: "payload", Usage: `Secret payload as a JSON object, e.g. {"api_key":"..."}`, Required: true},
							&cli.StringFlag{Name: "name", Usage: "Display name"},
							&cli.BoolFlag{Name: "default", Usage: "Make these the bot's default credentials", Value: true},
						},
						Action: func(ctx context.Context, c *cli.Command) error {
							req, err := putRequest(c)
							if err != nil {
								return err
							}
							cfg, err := withConfig(c)
							if err != nil {
								return err
							}
							id, err := putCredentials(ctx, cfg, req)
							if err != nil {
								return err
							}
							_, err = fmt.Fprintln(deps.stdout, id)
							return err
						},
					},
				},
			},
		},
	}
}

func putRequest(c *cli.Command) (credentials.PutRequest, error) {
	botID, err := uuid.Parse(c.String("bot"))
	if err != nil {
		return credentials.PutRequest{}, fmt.Errorf("invalid --bot: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(c.String("payload")), &payload); err != nil || payload == nil {
		return credentials.PutRequest{}, errors.New("invalid --payload: must be a JSON object")
	}
	name := c.String("name")
	if name == "" {
		name = c.String("provider")
	}
	return credentials.PutRequest{
		BotID:     botID,
		Provider:  c.String("provider"),
		Strategy:  c.String("strategy"),
		Name:      name,
		IsDefault: c.Bool("default"),
		Payload:   payload,
	}, nil
}

func putCredentials(ctx context.Context, cfg *config.Config, req credentials.PutRequest) (uuid.UUID, error) {
	key, err := cfg.SecretBoxKeyBytes()
	if err != nil {
		return uuid.Nil, err
	}
	box, err := credentials.NewSecretBox(key)
	if err != nil {
		return uuid.Nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	db, err := database.Open(ctx, cfg.DatabaseURL, 1)
	if err != nil {
		return uuid.Nil, err
	}
	defer db.Close()

	return credentials.NewPGStore(db, box).Put(ctx, req)
}
