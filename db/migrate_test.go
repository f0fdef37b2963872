package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateFreshDatabase(t *testing.T) {
	database, err := OpenInMemory()
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(database, nil))

	// All core tables exist
	for _, table := range []string{"schema_migrations", "prompts", "prompt_versions", "test_cases", "test_results", "prompt_metrics", "eval_spend"} {
		var name string
		err := database.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name = ?", table).Scan(&name)
		assert.NoError(t, err, "table %s should exist", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	database, err := OpenInMemory()
	require.NoError(t, err)
	defer database.Close()

	require.NoError(t, Migrate(database, nil))
	require.NoError(t, Migrate(database, nil))

	var count int
	require.NoError(t, database.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 4, count)
}
