package dao

import (
	"context"
	"database/sql"
	"strings"

	"github.com/telemat/jiraload/errors"
	"github.com/telemat/jiraload/jira"
)

// Project returns the project carrying the given key.
func (s *Store) Project(ctx context.Context, pkey string) (*jira.Project, error) {
	var p jira.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT ID, pname, pkey, pcounter FROM project WHERE pkey = ?", pkey).
		Scan(&p.ID, &p.Name, &p.Key, &p.Counter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "project %s", pkey)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "lookup project %s", pkey)
	}
	return &p, nil
}

// TrackerVersion returns the tracker's own version string.
func (s *Store) TrackerVersion(ctx context.Context) (string, error) {
	var version string
	err := s.db.QueryRowContext(ctx,
		"SELECT pluginversion FROM pluginversion WHERE pluginkey = ?",
		"com.atlassian.jira.ext.rpc").Scan(&version)
	if err != nil {
		return "", errors.Wrap(err, "lookup tracker version")
	}
	return version, nil
}

// HasScriptRunner indicates whether the script runner add-on is installed.
// When present, the post-import cache flush can be triggered remotely.
func (s *Store) HasScriptRunner(ctx context.Context) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM pluginversion WHERE pluginkey = ?",
		"com.onresolve.jira.groovy.groovyrunner").Scan(&count)
	if err != nil {
		return false, errors.Wrap(err, "lookup script runner plugin")
	}
	return count == 1, nil
}

// namedIDs runs a two-column id/name query and returns the name-to-id map.
func (s *Store) namedIDs(ctx context.Context, query string, args ...any) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, errors.WithStack(err)
		}
		out[name] = id
	}
	return out, errors.WithStack(rows.Err())
}

// Statuses returns the identifiers of the given status names.
func (s *Store) Statuses(ctx context.Context, names []string) (map[string]int, error) {
	if len(names) == 0 {
		return map[string]int{}, nil
	}
	return s.namedIDs(ctx,
		"SELECT DISTINCT(ID), pname FROM issuestatus WHERE pname IN ("+newIn(len(names))+")",
		asAny(names)...)
}

// StatusNames returns the full status table keyed by identifier, for binding
// workflow steps to status names.
func (s *Store) StatusNames(ctx context.Context) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ID, pname FROM issuestatus ORDER BY pname")
	if err != nil {
		return nil, errors.Wrap(err, "lookup statuses")
	}
	defer rows.Close()
	out := make(map[int]string)
	for rows.Next() {
		var id int
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, errors.WithStack(err)
		}
		out[id] = name
	}
	return out, errors.WithStack(rows.Err())
}

// Priorities returns all priorities, name to identifier.
func (s *Store) Priorities(ctx context.Context) (map[string]int, error) {
	return s.namedIDs(ctx, "SELECT ID, pname FROM priority ORDER BY ID")
}

// Resolutions returns all resolutions, name to identifier.
func (s *Store) Resolutions(ctx context.Context) (map[string]int, error) {
	return s.namedIDs(ctx, "SELECT ID, pname FROM resolution ORDER BY SEQUENCE")
}

// Types returns all issue types, name to identifier.
func (s *Store) Types(ctx context.Context) (map[string]int, error) {
	return s.namedIDs(ctx, "SELECT ID, pname FROM issuetype ORDER BY ID")
}

// Users returns the user names among the given ones that exist.
func (s *Store) Users(ctx context.Context, names []string) (map[string]struct{}, error) {
	if len(names) == 0 {
		return map[string]struct{}{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_name FROM cwd_user WHERE user_name IN ("+newIn(len(names))+")",
		asAny(names)...)
	if err != nil {
		return nil, errors.Wrap(err, "lookup users")
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.WithStack(err)
		}
		out[name] = struct{}{}
	}
	return out, errors.WithStack(rows.Err())
}

// Components returns the project's components, name to identifier.
func (s *Store) Components(ctx context.Context, project int) (map[string]int, error) {
	return s.namedIDs(ctx, "SELECT ID, cname FROM component WHERE PROJECT = ?", project)
}

// Versions returns the project's versions, name to identifier.
func (s *Store) Versions(ctx context.Context, project int) (map[string]int, error) {
	return s.namedIDs(ctx, "SELECT ID, vname FROM projectversion WHERE PROJECT = ?", project)
}

// ExistingIssueNumbers returns the issue numbers of the project already
// present within the given inclusive range.
func (s *Store) ExistingIssueNumbers(ctx context.Context, project, from, to int) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT issuenum FROM jiraissue WHERE PROJECT = ? AND issuenum >= ? AND issuenum <= ? ORDER BY issuenum",
		project, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "lookup existing issues")
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var num int
		if err := rows.Scan(&num); err != nil {
			return nil, errors.WithStack(err)
		}
		out = append(out, num)
	}
	return out, errors.WithStack(rows.Err())
}

// TypesToWorkflow maps issue type identifiers to workflow names for the
// project's workflow scheme. Key zero is the scheme's catch-all entry. When
// the project has no scheme, every type maps to the default workflow.
func (s *Store) TypesToWorkflow(ctx context.Context, project int) (map[int]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT issuetype, WORKFLOW FROM workflowschemeentity WHERE SCHEME ="+
			" (SELECT SINK_NODE_ID FROM nodeassociation WHERE SOURCE_NODE_ID=? AND SOURCE_NODE_ENTITY=? AND SINK_NODE_ENTITY=? AND ASSOCIATION_TYPE=?)",
		project, "Project", "WorkflowScheme", "ProjectScheme")
	if err != nil {
		return nil, errors.Wrap(err, "lookup workflow scheme")
	}
	defer rows.Close()
	out := make(map[int]string)
	for rows.Next() {
		var issueType sql.NullInt64
		var workflow string
		if err := rows.Scan(&issueType, &workflow); err != nil {
			return nil, errors.WithStack(err)
		}
		out[int(issueType.Int64)] = workflow
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if len(out) == 0 {
		types, err := s.Types(ctx)
		if err != nil {
			return nil, err
		}
		for _, id := range types {
			out[id] = jira.DefaultWorkflowName
		}
	}
	return out, nil
}

// WorkflowDescriptor returns the stored descriptor of the named workflow,
// or ok=false when the tracker does not know it.
func (s *Store) WorkflowDescriptor(ctx context.Context, name string) (string, bool, error) {
	var descriptor string
	err := s.db.QueryRowContext(ctx,
		"SELECT DESCRIPTOR FROM jiraworkflows WHERE workflowname = ?", name).Scan(&descriptor)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrapf(err, "lookup workflow %s", name)
	}
	return descriptor, true, nil
}

// CustomFields returns the definitions of the given custom field names,
// with their options populated and converters bound. Two fields sharing a
// name cannot be told apart in a CSV header, so duplicates are rejected.
func (s *Store) CustomFields(ctx context.Context, names []string) (map[string]*CustomField, error) {
	if len(names) == 0 {
		return map[string]*CustomField{}, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT ID, TRIM(cfname), CUSTOMFIELDTYPEKEY FROM customfield WHERE TRIM(cfname) IN ("+newIn(len(names))+")",
		asAny(names)...)
	if err != nil {
		return nil, errors.Wrap(err, "lookup custom fields")
	}
	defer rows.Close()

	fields := make(map[string]*CustomField)
	var ids []int
	byID := make(map[int]*CustomField)
	for rows.Next() {
		var f CustomField
		if err := rows.Scan(&f.ID, &f.Name, &f.TypeKey); err != nil {
			return nil, errors.WithStack(err)
		}
		if previous, ok := fields[f.Name]; ok && previous.ID != f.ID {
			return nil, errors.Newf("several custom fields share the name %q (#%d and #%d), the import cannot address them by name",
				f.Name, previous.ID, f.ID)
		}
		f.Options = make(map[string]int)
		f.converter = converterFor(f.TypeKey)
		fields[f.Name] = &f
		byID[f.ID] = &f
		ids = append(ids, f.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	if err := s.populateOptions(ctx, ids, byID); err != nil {
		return nil, err
	}
	return fields, nil
}

func (s *Store) populateOptions(ctx context.Context, ids []int, byID map[int]*CustomField) error {
	if len(ids) == 0 {
		return nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT CUSTOMFIELD, ID, customvalue FROM customfieldoption WHERE CUSTOMFIELD IN ("+newIn(len(ids))+")",
		asAny(ids)...)
	if err != nil {
		return errors.Wrap(err, "lookup custom field options")
	}
	defer rows.Close()
	for rows.Next() {
		var field, option int
		var label string
		if err := rows.Scan(&field, &option, &label); err != nil {
			return errors.WithStack(err)
		}
		byID[field].Options[strings.TrimSpace(label)] = option
	}
	return errors.WithStack(rows.Err())
}
