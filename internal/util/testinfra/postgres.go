package testinfra

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresOnce sync.Once

func EnsurePostgres() string {
	c := ReadConfig()
	if c.PostgresURL == "" {
		postgresOnce.Do(func() {
			startPostgresTestContainer(c)
		})
	}
	return c.PostgresURL
}

// NewPostgresURL creates an isolated database for the test and returns its
// connection string. The database is dropped on cleanup.
func NewPostgresURL(t *testing.T) string {
	ctx := context.Background()
	baseURL := EnsurePostgres()

	dbName := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	conn, err := pgx.Connect(ctx, baseURL)
	if err != nil {
		t.Fatalf("connecting to postgres: %v", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE %s", dbName)); err != nil {
		t.Fatalf("creating database: %v", err)
	}

	t.Cleanup(func() {
		conn, err := pgx.Connect(ctx, baseURL)
		if err != nil {
			log.Printf("failed to connect for cleanup: %s", err)
			return
		}
		defer conn.Close(ctx)
		if _, err := conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s WITH (FORCE)", dbName)); err != nil {
			log.Printf("failed to drop database %s: %s", dbName, err)
		}
	})

	return replaceDatabase(baseURL, dbName)
}

func replaceDatabase(connURL, dbName string) string {
	base, query, _ := strings.Cut(connURL, "?")
	if idx := strings.LastIndex(base, "/"); idx > len("postgres://") {
		base = base[:idx]
	}
	out := base + "/" + dbName
	if query != "" {
		out += "?" + query
	}
	return out
}

func startPostgresTestContainer(c *Config) {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dbcv_test"),
		postgres.WithUsername("dbcv_test"),
		postgres.WithPassword("dbcv_test"),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		panic(err)
	}

	endpoint, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		panic(err)
	}
	log.Printf("Postgres running at %s", endpoint)
	c.PostgresURL = endpoint
	c.addCleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	})
}
