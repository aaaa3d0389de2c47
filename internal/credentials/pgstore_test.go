package credentials_test

import (
	"context"
	"testing"

	"github.com/dbcv/platform/internal/credentials"
	"github.com/dbcv/platform/internal/database"
	"github.com/dbcv/platform/internal/migrator"
	"github.com/dbcv/platform/internal/util/testinfra"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPGStore(t *testing.T) (*credentials.PGStore, *pgxpool.Pool) {
	t.Helper()
	t.Cleanup(testinfra.Start(t))

	ctx := context.Background()
	dbURL := testinfra.NewPostgresURL(t)

	m, err := migrator.New(migrator.MigrationOpts{PostgresURL: dbURL})
	require.NoError(t, err)
	_, _, err = m.Up(ctx, -1)
	require.NoError(t, err)
	require.NoError(t, m.Close(ctx))

	pool, err := database.Open(ctx, dbURL, 4)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return credentials.NewPGStore(pool, newTestBox(t, 9)), pool
}

func TestPGStore(t *testing.T) {
	store, pool := setupPGStore(t)
	ctx := context.Background()
	botID := uuid.New()

	t.Run("nothing stored", func(t *testing.T) {
		got, err := store.GetDefaultFor(ctx, botID, "openweathermap", "api_key")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("stored credentials are sealed and returned decrypted", func(t *testing.T) {
		id, err := store.Put(ctx, credentials.PutRequest{
			BotID:     botID,
			Provider:  "openweathermap",
			Strategy:  "api_key",
			Name:      "primary",
			IsDefault: true,
			Payload:   map[string]any{"api_key": "owm-secret"},
		})
		require.NoError(t, err)

		var raw []byte
		require.NoError(t, pool.QueryRow(ctx, "SELECT payload FROM bot_credentials WHERE id = $1", id.String()).Scan(&raw))
		assert.NotContains(t, string(raw), "owm-secret")

		got, err := store.GetDefaultFor(ctx, botID, "openweathermap", "api_key")
		require.NoError(t, err)
		assert.Equal(t, id.String(), got["id"])
		assert.Equal(t, "primary", got["name"])
		assert.Equal(t, "openweathermap", got["provider"])
		assert.Equal(t, "api_key", got["strategy"])
		assert.Equal(t, "owm-secret", got.Payload()["api_key"])
	})

	t.Run("default wins over newer non-default", func(t *testing.T) {
		_, err := store.Put(ctx, credentials.PutRequest{
			BotID:    botID,
			Provider: "openweathermap",
			Strategy: "api_key",
			Name:     "secondary",
			Payload:  map[string]any{"api_key": "other"},
		})
		require.NoError(t, err)

		got, err := store.GetDefaultFor(ctx, botID, "openweathermap", "api_key")
		require.NoError(t, err)
		assert.Equal(t, "primary", got["name"])
	})

	t.Run("new default replaces the previous one", func(t *testing.T) {
		_, err := store.Put(ctx, credentials.PutRequest{
			BotID:     botID,
			Provider:  "openweathermap",
			Strategy:  "api_key",
			Name:      "rotated",
			IsDefault: true,
			Payload:   map[string]any{"api_key": "rotated-secret"},
		})
		require.NoError(t, err)

		got, err := store.GetDefaultFor(ctx, botID, "openweathermap", "api_key")
		require.NoError(t, err)
		assert.Equal(t, "rotated", got["name"])
		assert.Equal(t, "rotated-secret", got.Payload()["api_key"])
	})

	t.Run("other strategy is isolated", func(t *testing.T) {
		got, err := store.GetDefaultFor(ctx, botID, "openweathermap", "oauth")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}
