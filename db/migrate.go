package db

import (
	"database/sql"
	"embed"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/telemat/jiraload/errors"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate runs all pending application-store migrations.
// If logger is provided, logs migration progress; otherwise operates silently.
func Migrate(store *sql.DB, logger *zap.SugaredLogger) error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return errors.Wrap(err, "read migrations")
	}

	// Sort migrations (000_create_schema_migrations.sql runs first)
	var migrationFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			migrationFiles = append(migrationFiles, entry.Name())
		}
	}
	sort.Strings(migrationFiles)

	for _, filename := range migrationFiles {
		version := strings.Split(filename, "_")[0]

		// Check if already applied (schema_migrations created by 000)
		var exists bool
		err := store.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", version).Scan(&exists)
		if err != nil {
			// Table doesn't exist yet - this must be migration 000
			if version != "000" {
				return errors.Newf("schema_migrations table missing, but migration is not 000: %s", filename)
			}
		} else if exists {
			if logger != nil {
				logger.Debugw("Skipping migration (already applied)",
					"migration", filename,
					"version", version,
				)
			}
			continue
		}

		sqlBytes, err := migrations.ReadFile(filepath.Join("migrations", filename))
		if err != nil {
			return errors.Wrapf(err, "read %s", filename)
		}

		if logger != nil {
			logger.Infow("Applying migration",
				"migration", filename,
				"version", version,
			)
		}

		if _, err := store.Exec(string(sqlBytes)); err != nil {
			return errors.Wrapf(err, "apply %s", filename)
		}

		if _, err := store.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return errors.Wrapf(err, "record %s", filename)
		}
	}

	return nil
}
