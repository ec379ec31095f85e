// Package subscription manages import targets: the tracker database and
// project one or more imports are bound to.
package subscription

import (
	"context"
	"database/sql"
	"time"

	"go.uber.org/zap"

	"github.com/telemat/jiraload/errors"
)

// Subscription binds an import target to one logical import lock: the
// tracker database connection, the project within it, and the optional
// administration account used for post-import synchronization.
type Subscription struct {
	ID            int64
	Name          string
	DSN           string
	URL           string
	Project       int
	Pkey          string
	AdminUser     string
	AdminPassword string
	CreatedAt     time.Time
}

// Store persists subscriptions in the application database.
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// NewStore creates a subscription store.
func NewStore(db *sql.DB, log *zap.SugaredLogger) *Store {
	return &Store{db: db, log: log.Named("subscription")}
}

// Create registers a new subscription. Names are unique.
func (s *Store) Create(ctx context.Context, sub *Subscription) error {
	sub.CreatedAt = time.Now()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO subscriptions (name, dsn, url, project, pkey, admin_user, admin_password, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.Name, sub.DSN, sub.URL, sub.Project, sub.Pkey, sub.AdminUser, sub.AdminPassword, sub.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "create subscription %s", sub.Name)
	}
	sub.ID, err = res.LastInsertId()
	if err != nil {
		return errors.WithStack(err)
	}
	s.log.Infow("subscription created", "name", sub.Name, "project", sub.Pkey)
	return nil
}

// ByName returns the subscription carrying the given name.
func (s *Store) ByName(ctx context.Context, name string) (*Subscription, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		"SELECT id, name, dsn, url, project, pkey, admin_user, admin_password, created_at FROM subscriptions WHERE name = ?",
		name), name)
}

// ByID returns the subscription carrying the given identifier.
func (s *Store) ByID(ctx context.Context, id int64) (*Subscription, error) {
	return s.scanOne(s.db.QueryRowContext(ctx,
		"SELECT id, name, dsn, url, project, pkey, admin_user, admin_password, created_at FROM subscriptions WHERE id = ?",
		id), id)
}

func (s *Store) scanOne(row *sql.Row, key any) (*Subscription, error) {
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.Name, &sub.DSN, &sub.URL, &sub.Project, &sub.Pkey,
		&sub.AdminUser, &sub.AdminPassword, &sub.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "subscription %v", key)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lookup subscription %v", key)
	}
	return &sub, nil
}

// List returns all subscriptions, oldest first.
func (s *Store) List(ctx context.Context) ([]*Subscription, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, dsn, url, project, pkey, admin_user, admin_password, created_at FROM subscriptions ORDER BY id")
	if err != nil {
		return nil, errors.Wrap(err, "list subscriptions")
	}
	defer rows.Close()
	var out []*Subscription
	for rows.Next() {
		var sub Subscription
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.DSN, &sub.URL, &sub.Project, &sub.Pkey,
			&sub.AdminUser, &sub.AdminPassword, &sub.CreatedAt); err != nil {
			return nil, errors.WithStack(err)
		}
		out = append(out, &sub)
	}
	return out, errors.WithStack(rows.Err())
}

// Delete removes a subscription by name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE name = ?", name)
	if err != nil {
		return errors.Wrapf(err, "delete subscription %s", name)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return errors.WithStack(err)
	}
	if affected == 0 {
		return errors.Wrapf(errors.ErrNotFound, "subscription %s", name)
	}
	return nil
}
