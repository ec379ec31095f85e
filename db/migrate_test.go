package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestOpenStoreAndMigrate(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()
	path := filepath.Join(t.TempDir(), "nested", "jiraload.db")

	store, err := OpenStore(path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, Migrate(store, logger))

	// All migrations recorded
	var count int
	require.NoError(t, store.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.GreaterOrEqual(t, count, 3)

	// Tables exist
	for _, table := range []string{"subscriptions", "import_status"} {
		var name string
		err := store.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err, "table %s missing", table)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "jiraload.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, Migrate(store, nil))
	require.NoError(t, Migrate(store, nil))

	var count int
	require.NoError(t, store.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.GreaterOrEqual(t, count, 3)
}

func TestOpenTargetRejectsBadDSN(t *testing.T) {
	_, err := OpenTarget("not a dsn", nil)
	assert.Error(t, err)
}
