package postgres

import (
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrationProvider_Sources(t *testing.T) {
	db, mock := newMockDB(t)

	provider, err := newMigrationProvider(db, false)
	require.NoError(t, err)

	sources := provider.ListSources()
	require.NotEmpty(t, sources)
	assert.Equal(t, int64(1), sources[0].Version)
	assert.Equal(t, goose.TypeSQL, sources[0].Type)
	for i := 1; i < len(sources); i++ {
		assert.Greater(t, sources[i].Version, sources[i-1].Version)
	}

	// building the provider must not touch the database
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationFiles_Annotated(t *testing.T) {
	body, err := migrationFiles.ReadFile("migrations/0001_replenishment.sql")
	require.NoError(t, err)

	sql := string(body)
	require.True(t, strings.HasPrefix(sql, "-- +goose Up\n"))
	require.Contains(t, sql, "-- +goose Down\n")

	up, down, _ := strings.Cut(sql, "-- +goose Down")
	for _, table := range []string{"products", "sales_history", "availability_history", "purchase_orders", "coverage_results"} {
		assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+table+" (")
		assert.Contains(t, down, "DROP TABLE IF EXISTS "+table+";")
	}
}
