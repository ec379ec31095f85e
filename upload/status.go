package upload

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/telemat/jiraload/errors"
)

// ImportStatus is the persisted progress and outcome of one import run.
// Counters are nil until the pipeline stage computing them has run.
type ImportStatus struct {
	ID           string
	Subscription int64
	Author       string
	Mode         Mode
	Step         int
	Start        time.Time
	End          *time.Time
	Failed       bool

	Jira         *int
	Pkey         *string
	JiraVersion  *string
	ScriptRunner *bool

	Changes       *int
	Issues        *int
	Statuses      *int
	Priorities    *int
	Resolutions   *int
	Types         *int
	Users         *int
	CustomFields  *int
	Versions      *int
	Components    *int
	Labels        *int
	StatusChanges *int
	MinIssue      *int
	MaxIssue      *int
	IssueFrom     *time.Time
	IssueTo       *time.Time
	NewIssues     *int
	NewComponents *int
	NewVersions   *int

	CanSynchronize *bool
	Synchronized   *bool
}

// Running reports whether the run has not been finalized yet.
func (s *ImportStatus) Running() bool {
	return s.End == nil
}

// StatusStore persists import runs in the application database and owns
// the per-subscription import lock.
type StatusStore struct {
	db  *sql.DB
	log *zap.SugaredLogger

	// mu closes the race between reading the latest status and inserting
	// a new one. The persisted unfinished row is the durable lock.
	mu sync.Mutex
}

// NewStatusStore creates a status store.
func NewStatusStore(db *sql.DB, log *zap.SugaredLogger) *StatusStore {
	return &StatusStore{db: db, log: log.Named("status")}
}

// Start atomically acquires the import lock of the subscription and creates
// a fresh status record at step zero. When an unfinished run already exists,
// it fails with a ConcurrencyError instead of queuing.
func (s *StatusStore) Start(ctx context.Context, subscription int64, author string, mode Mode) (*ImportStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var running int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM import_status WHERE subscription = ? AND end_time IS NULL",
		subscription).Scan(&running)
	if err != nil {
		return nil, errors.Wrap(err, "check running import")
	}
	if running > 0 {
		return nil, &ConcurrencyError{Subscription: subscription}
	}

	status := &ImportStatus{
		ID:           uuid.NewString(),
		Subscription: subscription,
		Author:       author,
		Mode:         mode,
		Start:        time.Now(),
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO import_status (id, subscription, author, mode, step, start, failed) VALUES (?, ?, ?, ?, 0, ?, 0)",
		status.ID, status.Subscription, status.Author, string(status.Mode), status.Start)
	if err != nil {
		return nil, errors.Wrap(err, "create import status")
	}
	s.log.Infow("import started", "subscription", subscription, "mode", mode, "run", status.ID)
	return status, nil
}

// NextStep advances the step counter and persists the whole record, so a
// crash mid-run still shows how far it progressed.
func (s *StatusStore) NextStep(ctx context.Context, status *ImportStatus) error {
	status.Step++
	return s.save(ctx, status)
}

// Finish finalizes the run: end timestamp and failure flag. Every exit
// path of the pipeline goes through here, releasing the durable lock.
func (s *StatusStore) Finish(ctx context.Context, status *ImportStatus, failed bool) error {
	now := time.Now()
	status.End = &now
	status.Failed = failed
	s.log.Infow("import finished",
		"subscription", status.Subscription, "run", status.ID, "step", status.Step, "failed", failed)
	return s.save(ctx, status)
}

func (s *StatusStore) save(ctx context.Context, status *ImportStatus) error {
	_, err := s.db.ExecContext(ctx, `UPDATE import_status SET
		step = ?, end_time = ?, failed = ?,
		jira = ?, pkey = ?, jira_version = ?, script_runner = ?,
		changes = ?, issues = ?, statuses = ?, priorities = ?, resolutions = ?, types = ?,
		users = ?, custom_fields = ?, versions = ?, components = ?, labels = ?, status_changes = ?,
		min_issue = ?, max_issue = ?, issue_from = ?, issue_to = ?,
		new_issues = ?, new_components = ?, new_versions = ?,
		can_synchronize = ?, synchronized = ?
		WHERE id = ?`,
		status.Step, status.End, status.Failed,
		status.Jira, status.Pkey, status.JiraVersion, status.ScriptRunner,
		status.Changes, status.Issues, status.Statuses, status.Priorities, status.Resolutions, status.Types,
		status.Users, status.CustomFields, status.Versions, status.Components, status.Labels, status.StatusChanges,
		status.MinIssue, status.MaxIssue, status.IssueFrom, status.IssueTo,
		status.NewIssues, status.NewComponents, status.NewVersions,
		status.CanSynchronize, status.Synchronized,
		status.ID)
	return errors.Wrap(err, "save import status")
}

const statusColumns = `id, subscription, author, mode, step, start, end_time, failed,
	jira, pkey, jira_version, script_runner,
	changes, issues, statuses, priorities, resolutions, types,
	users, custom_fields, versions, components, labels, status_changes,
	min_issue, max_issue, issue_from, issue_to,
	new_issues, new_components, new_versions,
	can_synchronize, synchronized`

func scanStatus(row interface{ Scan(...any) error }) (*ImportStatus, error) {
	var status ImportStatus
	var mode string
	err := row.Scan(&status.ID, &status.Subscription, &status.Author, &mode, &status.Step,
		&status.Start, &status.End, &status.Failed,
		&status.Jira, &status.Pkey, &status.JiraVersion, &status.ScriptRunner,
		&status.Changes, &status.Issues, &status.Statuses, &status.Priorities, &status.Resolutions, &status.Types,
		&status.Users, &status.CustomFields, &status.Versions, &status.Components, &status.Labels, &status.StatusChanges,
		&status.MinIssue, &status.MaxIssue, &status.IssueFrom, &status.IssueTo,
		&status.NewIssues, &status.NewComponents, &status.NewVersions,
		&status.CanSynchronize, &status.Synchronized)
	if err != nil {
		return nil, err
	}
	status.Mode = Mode(mode)
	return &status, nil
}

// Latest returns the most recent run of the subscription, finished or not.
func (s *StatusStore) Latest(ctx context.Context, subscription int64) (*ImportStatus, error) {
	status, err := scanStatus(s.db.QueryRowContext(ctx,
		"SELECT "+statusColumns+" FROM import_status WHERE subscription = ? ORDER BY start DESC, id DESC LIMIT 1",
		subscription))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "no import run for subscription %d", subscription)
	}
	if err != nil {
		return nil, errors.Wrap(err, "lookup import status")
	}
	return status, nil
}

// BySubscription returns all runs of the subscription, newest first.
func (s *StatusStore) BySubscription(ctx context.Context, subscription int64) ([]*ImportStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+statusColumns+" FROM import_status WHERE subscription = ? ORDER BY start DESC, id DESC",
		subscription)
	if err != nil {
		return nil, errors.Wrap(err, "list import statuses")
	}
	defer rows.Close()
	var out []*ImportStatus
	for rows.Next() {
		status, err := scanStatus(rows)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		out = append(out, status)
	}
	return out, errors.WithStack(rows.Err())
}
