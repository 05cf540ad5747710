// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Integration: set STREAMGATE_TEST_POSTGRES_DSN to run against a scratch database.
func TestOpen_MigratesTwice(t *testing.T) {
	dsn := os.Getenv("STREAMGATE_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("STREAMGATE_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	db, err := Open(ctx, dsn, DefaultConfig())
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, "postgres", db.Dialect)

	require.NoError(t, Migrate(ctx, db.DB), "schema must be re-appliable")

	var n int
	require.NoError(t, db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM information_schema.tables WHERE table_name IN ('users','subscriptions','movies','watch_records','movie_likes')`).Scan(&n))
	assert.Equal(t, 5, n)
}
