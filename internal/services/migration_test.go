package services_test

import (
	"context"
	"testing"

	"github.com/dbcv/platform/internal/services"
	"github.com/dbcv/platform/internal/util/testinfra"
	"github.com/dbcv/platform/internal/util/testutil"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations_UpAndDown(t *testing.T) {
	testutil.Integration(t)
	t.Cleanup(testinfra.Start(t))

	ctx := context.Background()
	logger := testutil.CreateTestLogger(t)
	dbURL := testinfra.NewPostgresURL(t)

	tableExists := func() bool {
		conn, err := pgx.Connect(ctx, dbURL)
		require.NoError(t, err)
		defer conn.Close(ctx)

		var exists bool
		err = conn.QueryRow(ctx, "SELECT to_regclass('public.bot_credentials') IS NOT NULL").Scan(&exists)
		require.NoError(t, err)
		return exists
	}

	require.NoError(t, services.RunMigrations(ctx, dbURL, logger))
	assert.True(t, tableExists())

	// Applying twice is a no-op.
	require.NoError(t, services.RunMigrations(ctx, dbURL, logger))

	require.NoError(t, services.RollbackMigrations(ctx, dbURL, 1, logger))
	assert.False(t, tableExists())

	err := services.RollbackMigrations(ctx, dbURL, 1, logger)
	require.Error(t, err)
}
