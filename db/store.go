// Package db manages the two databases jiraload touches: the local
// application store (subscriptions and import statuses, SQLite) and the
// target tracker database (the Jira schema, MySQL).
package db

import (
	"database/sql"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/telemat/jiraload/errors"
)

// OpenStore opens the local application store at the specified path with
// optimized settings, creating parent directories as needed.
// If logger is provided, logs database operations; otherwise operates silently.
func OpenStore(path string, logger *zap.SugaredLogger) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrap(err, "failed to create store directory")
		}
	}

	if logger != nil {
		logger.Debugw("Opening application store", "path", path)
	}
	store, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open application store")
	}

	// Enable WAL mode for concurrent reads during writes
	if _, err := store.Exec("PRAGMA journal_mode = WAL"); err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to enable WAL mode")
	}

	// Enable foreign key constraints
	if _, err := store.Exec("PRAGMA foreign_keys = ON"); err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to enable foreign keys")
	}

	// Set busy timeout to 5 seconds
	if _, err := store.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		store.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}

	if logger != nil {
		logger.Infow("Application store opened",
			"path", path,
			"wal_mode", true,
			"foreign_keys", true,
		)
	}

	return store, nil
}
