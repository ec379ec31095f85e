package dao

import (
	"context"
	"database/sql"

	"github.com/telemat/jiraload/errors"
	"github.com/telemat/jiraload/jira"
)

// AddComponents creates the given components within the project and returns
// their identifiers by name.
func (s *Store) AddComponents(ctx context.Context, project int, components []string) (map[string]int, error) {
	if len(components) == 0 {
		return map[string]int{}, nil
	}
	nextID, err := s.Reserve(ctx, componentNode, len(components))
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(components))
	for _, component := range components {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO component (ID,PROJECT,cname) values(?,?,?)", nextID, project, component); err != nil {
			return nil, errors.Wrapf(err, "insert component %s", component)
		}
		result[component] = nextID
		nextID++
	}
	return result, nil
}

// AddVersions creates the given versions within the project, continuing the
// project's version ordering sequence, and returns their identifiers by name.
func (s *Store) AddVersions(ctx context.Context, project int, versions []string) (map[string]int, error) {
	if len(versions) == 0 {
		return map[string]int{}, nil
	}
	nextID, err := s.Reserve(ctx, versionNode, len(versions))
	if err != nil {
		return nil, err
	}
	nextSequence, err := s.nextVersionSequence(ctx, project)
	if err != nil {
		return nil, err
	}
	result := make(map[string]int, len(versions))
	for _, version := range versions {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO projectversion (ID,PROJECT,vname,SEQUENCE) values(?,?,?,?)",
			nextID, project, version, nextSequence); err != nil {
			return nil, errors.Wrapf(err, "insert version %s", version)
		}
		result[version] = nextID
		nextID++
		nextSequence++
	}
	return result, nil
}

func (s *Store) nextVersionSequence(ctx context.Context, project int) (int, error) {
	var max sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT MAX(SEQUENCE) FROM projectversion WHERE PROJECT = ?", project).Scan(&max)
	if err != nil {
		return 0, errors.Wrap(err, "read version sequence")
	}
	if !max.Valid {
		return 1, nil
	}
	return int(max.Int64) + 1, nil
}

// AddIssues inserts the given issues along with their workflow entry and
// current workflow step, and advances the project's issue counter past the
// highest imported number. Allocated identifiers are written back into the
// rows. workflows is keyed by issue type, with key zero as the fallback.
func (s *Store) AddIssues(ctx context.Context, project int, issues []*IssueRow, workflows map[int]*jira.Workflow) error {
	nextID, err := s.Reserve(ctx, issueNode, len(issues))
	if err != nil {
		return err
	}
	if err := s.reserveProjectCounter(ctx, project, issues); err != nil {
		return err
	}
	nextStepID, err := s.Reserve(ctx, "OSCurrentStep", len(issues))
	if err != nil {
		return err
	}
	nextEntryID, err := s.Reserve(ctx, "OSWorkflowEntry", len(issues))
	if err != nil {
		return err
	}
	for counter, issue := range issues {
		issue.ID = nextID
		if s.LogEvery <= 1 || counter%s.LogEvery == 0 {
			s.log.Infow("inserting issue",
				"issue", issue.Key, "id", issue.ID, "progress", counter, "total", len(issues))
		}
		workflow := workflows[issue.Type]
		if workflow == nil {
			workflow = workflows[0]
		}
		if err := s.addIssue(ctx, project, nextID, nextStepID, nextEntryID, issue, workflow); err != nil {
			return err
		}
		nextID++
		nextStepID++
		nextEntryID++
	}
	return nil
}

func (s *Store) reserveProjectCounter(ctx context.Context, project int, issues []*IssueRow) error {
	max := 0
	for _, issue := range issues {
		if issue.IssueNum > max {
			max = issue.IssueNum
		}
	}
	_, err := s.db.ExecContext(ctx,
		"UPDATE project SET pcounter = ? WHERE ID = ? AND pcounter <= ?", max+1, project, max)
	return errors.Wrap(err, "reserve project counter")
}

func (s *Store) addIssue(ctx context.Context, project, id, stepID, entryID int, issue *IssueRow, workflow *jira.Workflow) error {
	step, _ := workflow.Step(issue.StatusText)

	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO OS_WFENTRY (ID,NAME,STATE) values(?,?,?)", entryID, workflow.Name, 1); err != nil {
		return errors.Wrapf(err, "insert workflow entry of %s", issue.Key)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO OS_CURRENTSTEP (ID,ENTRY_ID,STEP_ID,ACTION_ID,START_DATE,STATUS) values(?,?,?,?,?,?)",
		stepID, entryID, step.ID, 0, issue.Created, step.Name); err != nil {
		return errors.Wrapf(err, "insert workflow step of %s", issue.Key)
	}
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO jiraissue"+
			" (ID,issuenum,WATCHES,VOTES,PROJECT,REPORTER,ASSIGNEE,CREATOR,issuetype,SUMMARY,DESCRIPTION,PRIORITY,RESOLUTION,RESOLUTIONDATE,"+
			"issuestatus,CREATED,UPDATED,WORKFLOW_ID,DUEDATE) values(?,?,1,0,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)",
		id, issue.IssueNum, project, issue.Reporter, issue.Assignee, issue.Author, issue.Type,
		issue.Summary, issue.Description, issue.Priority, issue.Resolution, issue.ResolutionDate,
		issue.Status, issue.Created, issue.Updated, entryID, issue.DueDate); err != nil {
		return errors.Wrapf(err, "insert issue %s", issue.Key)
	}
	// The author watches the created issue, so it shows on their activity.
	if _, err := s.db.ExecContext(ctx,
		"INSERT INTO userassociation (SOURCE_NAME,SINK_NODE_ID,SINK_NODE_ENTITY,ASSOCIATION_TYPE,CREATED) values(?,?,?,?,?)",
		issue.Author, id, issueNode, "WatchIssue", issue.Updated); err != nil {
		return errors.Wrapf(err, "insert watcher of %s", issue.Key)
	}
	return nil
}

// AssociateComponentsAndVersions links each issue to its components,
// affected versions and fix versions. All targets must already exist.
func (s *Store) AssociateComponentsAndVersions(ctx context.Context, issues []*IssueRow) error {
	for _, issue := range issues {
		if err := s.associateItems(ctx, issue.ID, issue.Components, componentNode, "IssueComponent"); err != nil {
			return err
		}
		if err := s.associateItems(ctx, issue.ID, issue.Versions, versionNode, "IssueVersion"); err != nil {
			return err
		}
		if err := s.associateItems(ctx, issue.ID, issue.FixedVersions, versionNode, "IssueFixVersion"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) associateItems(ctx context.Context, issueID int, items []int, nodeType, associationType string) error {
	for _, item := range items {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO nodeassociation (SOURCE_NODE_ID,SOURCE_NODE_ENTITY,SINK_NODE_ID,SINK_NODE_ENTITY,ASSOCIATION_TYPE)"+
				" values(?,?,?,?,?)", issueID, issueNode, item, nodeType, associationType); err != nil {
			return errors.Wrapf(err, "associate %s %d to issue %d", associationType, item, issueID)
		}
	}
	return nil
}

// AssociateCustomFieldValues persists the converted custom field values of
// each issue, one row per value in the field's storage column.
func (s *Store) AssociateCustomFieldValues(ctx context.Context, issues []*IssueRow) error {
	amount := 0
	for _, issue := range issues {
		amount += len(issue.CustomFields)
	}
	nextID, err := s.Reserve(ctx, "CustomFieldValue", amount)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		for _, value := range issue.CustomFields {
			if _, err := s.db.ExecContext(ctx,
				"INSERT INTO customfieldvalue (ID,ISSUE,CUSTOMFIELD,"+value.Column+") values(?,?,?,?)",
				nextID, issue.ID, value.FieldID, value.Value); err != nil {
				return errors.Wrapf(err, "insert custom field value of issue %d", issue.ID)
			}
			nextID++
		}
	}
	return nil
}

// AddLabels replaces each issue's labels with the imported set: labels not
// in the set are removed, missing ones are created.
func (s *Store) AddLabels(ctx context.Context, issues []*IssueRow) error {
	amount := 0
	for _, issue := range issues {
		amount += len(issue.Labels)
	}
	if amount == 0 {
		return nil
	}
	nextID, err := s.Reserve(ctx, "Label", amount)
	if err != nil {
		return err
	}
	for _, issue := range issues {
		if len(issue.Labels) == 0 {
			continue
		}
		args := append([]any{issue.ID}, asAny(issue.Labels)...)
		if _, err := s.db.ExecContext(ctx,
			"DELETE FROM label WHERE ISSUE = ? AND LABEL NOT IN ("+newIn(len(issue.Labels))+")", args...); err != nil {
			return errors.Wrapf(err, "clear labels of issue %d", issue.ID)
		}
		for _, label := range issue.Labels {
			if _, err := s.db.ExecContext(ctx,
				"INSERT INTO label(ID,ISSUE,LABEL) values(?,?,?)", nextID, issue.ID, label); err != nil {
				return errors.Wrapf(err, "insert label of issue %d", issue.ID)
			}
			nextID++
		}
	}
	return nil
}

// AddChanges persists the status transition history, one change group with
// a single status change item per transition.
func (s *Store) AddChanges(ctx context.Context, changes []ChangeRow) error {
	if len(changes) == 0 {
		return nil
	}
	nextItemID, err := s.Reserve(ctx, "ChangeItem", len(changes))
	if err != nil {
		return err
	}
	nextGroupID, err := s.Reserve(ctx, "ChangeGroup", len(changes))
	if err != nil {
		return err
	}
	for _, change := range changes {
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO changegroup (ID,issueid,AUTHOR,CREATED) values(?,?,?,?)",
			nextGroupID, change.IssueID, change.Author, change.Date); err != nil {
			return errors.Wrapf(err, "insert change group of issue %d", change.IssueID)
		}
		if _, err := s.db.ExecContext(ctx,
			"INSERT INTO changeitem (ID,groupid,FIELDTYPE,FIELD,OLDVALUE,OLDSTRING,NEWVALUE,NEWSTRING) values(?,?,?,?,?,?,?,?)",
			nextItemID, nextGroupID, "jira", "status", change.FromStatus, change.FromStatusText,
			change.ToStatus, change.ToStatusText); err != nil {
			return errors.Wrapf(err, "insert change item of issue %d", change.IssueID)
		}
		nextItemID++
		nextGroupID++
	}
	return nil
}
