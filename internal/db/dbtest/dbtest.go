// Package dbtest opens throwaway databases for package tests.
package dbtest

import (
	"context"
	"testing"

	"github.com/DuyAnh662/Fileshare/internal/db"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// Open returns an in-memory SQLite database with all migrations applied.
// It is closed when the test finishes.
func Open(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := db.Init("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	err = db.RunMigrations(context.Background(), database.DB, "sqlite")
	require.NoError(t, err)

	return database
}
