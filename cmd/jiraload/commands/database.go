package commands

import (
	"database/sql"
	"fmt"

	"github.com/telemat/jiraload/config"
	"github.com/telemat/jiraload/db"
	"github.com/telemat/jiraload/logger"
)

// openStore opens the local application database and applies pending
// migrations. The caller owns the returned connection.
func openStore() (*sql.DB, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	store, err := db.OpenStore(cfg.StorePath, logger.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Migrate(store, logger.Logger); err != nil {
		store.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, cfg, nil
}
