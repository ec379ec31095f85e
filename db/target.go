package db

import (
	"database/sql"
	"time"

	"github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/telemat/jiraload/errors"
)

// OpenTarget opens the target tracker database described by the given MySQL
// DSN and verifies connectivity. The connection pool is kept small: one import
// is single-threaded and the tracker is a shared production database.
func OpenTarget(dsn string, logger *zap.SugaredLogger) (*sql.DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Wrap(err, "invalid target DSN")
	}
	// Timestamps are compared and written as local wall-clock values,
	// matching what the tracker itself stores.
	cfg.ParseTime = true
	cfg.Loc = time.Local

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build target connector")
	}

	target := sql.OpenDB(connector)
	target.SetMaxOpenConns(4)
	target.SetMaxIdleConns(2)
	target.SetConnMaxLifetime(5 * time.Minute)

	if err := target.Ping(); err != nil {
		target.Close()
		return nil, errors.Wrap(err, "target database unreachable")
	}

	if logger != nil {
		logger.Infow("Target database connected",
			"addr", cfg.Addr,
			"schema", cfg.DBName,
		)
	}
	return target, nil
}
