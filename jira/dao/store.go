// Package dao reads and writes the target tracker database. Lookups resolve
// the reference data an import needs (statuses, priorities, users, custom
// fields) and the update side persists new issues with hand-allocated
// identifiers, since the tracker's own application layer is bypassed.
package dao

import (
	"database/sql"
	"strings"

	"go.uber.org/zap"
)

// Store wraps the tracker database connection.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger

	// LogEvery throttles per-row progress logging during bulk inserts.
	// Zero or one logs every row.
	LogEvery int
}

// New creates a Store around an open tracker connection.
func New(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log.Named("dao")}
}

// DB exposes the underlying connection for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// newIn builds a placeholder list for an IN clause of n values.
func newIn(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat(",?", n)[1:]
}

func asAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
