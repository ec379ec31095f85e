package dao

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemat/jiraload/jira"
)

func TestAddComponents(t *testing.T) {
	s := newTestStore(t)
	seedReferenceData(t, s)

	created, err := s.AddComponents(context.Background(), 10074, []string{"Batch", "API"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Batch": 10100, "API": 10101}, created)

	names, err := s.Components(context.Background(), 10074)
	require.NoError(t, err)
	assert.Len(t, names, 4)
	assert.Equal(t, 10100, names["Batch"])
}

func TestAddVersionsContinuesSequence(t *testing.T) {
	s := newTestStore(t)
	seedReferenceData(t, s)

	created, err := s.AddVersions(context.Background(), 10074, []string{"2.0.0", "3.0.0"})
	require.NoError(t, err)
	assert.Len(t, created, 2)

	// Seeded version has SEQUENCE 1, new ones continue from 2.
	var seq int
	require.NoError(t, s.db.QueryRow(
		"SELECT SEQUENCE FROM projectversion WHERE vname = '3.0.0'").Scan(&seq))
	assert.Equal(t, 3, seq)
}

func TestAddVersionsFirstVersion(t *testing.T) {
	s := newTestStore(t)
	_, err := s.db.Exec("INSERT INTO project (ID, pname, pkey, pcounter) VALUES (1, 'Empty', 'EMP', 0)")
	require.NoError(t, err)

	_, err = s.AddVersions(context.Background(), 1, []string{"0.1"})
	require.NoError(t, err)

	var seq int
	require.NoError(t, s.db.QueryRow(
		"SELECT SEQUENCE FROM projectversion WHERE vname = '0.1'").Scan(&seq))
	assert.Equal(t, 1, seq)
}

func newIssueRow(num int, status int, statusText string) *IssueRow {
	created := time.Date(2014, 3, 1, 10, 0, 0, 0, time.Local)
	return &IssueRow{
		IssueNum:   num,
		Key:        "MDA",
		Type:       1,
		Status:     status,
		StatusText: statusText,
		Created:    created,
		Updated:    created.Add(time.Hour),
		Reporter:   "fdaugan",
		Author:     "fdaugan",
		Summary:    "Imported issue",
	}
}

func TestAddIssues(t *testing.T) {
	s := newTestStore(t)
	seedReferenceData(t, s)
	ctx := context.Background()

	issues := []*IssueRow{newIssueRow(54, 1, "Open"), newIssueRow(55, 4, "Resolved")}
	workflows := map[int]*jira.Workflow{0: jira.DefaultWorkflow()}
	require.NoError(t, s.AddIssues(ctx, 10074, issues, workflows))

	// Identifiers come from the reserved range and are written back.
	assert.Equal(t, 10100, issues[0].ID)
	assert.Equal(t, 10101, issues[1].ID)

	var num, status, watches, workflowID int
	require.NoError(t, s.db.QueryRow(
		"SELECT issuenum, issuestatus, WATCHES, WORKFLOW_ID FROM jiraissue WHERE ID = 10101").
		Scan(&num, &status, &watches, &workflowID))
	assert.Equal(t, 55, num)
	assert.Equal(t, 4, status)
	assert.Equal(t, 1, watches)

	// The workflow entry and its current step follow the issue's status.
	var state int
	require.NoError(t, s.db.QueryRow(
		"SELECT STATE FROM OS_WFENTRY WHERE ID = ?", workflowID).Scan(&state))
	assert.Equal(t, 1, state)
	var stepID int
	var stepStatus string
	require.NoError(t, s.db.QueryRow(
		"SELECT STEP_ID, STATUS FROM OS_CURRENTSTEP WHERE ENTRY_ID = ?", workflowID).
		Scan(&stepID, &stepStatus))
	assert.Equal(t, 4, stepID)
	assert.Equal(t, "Resolved", stepStatus)

	// The author watches what they imported.
	var author string
	require.NoError(t, s.db.QueryRow(
		"SELECT SOURCE_NAME FROM userassociation WHERE SINK_NODE_ID = 10101 AND ASSOCIATION_TYPE = 'WatchIssue'").
		Scan(&author))
	assert.Equal(t, "fdaugan", author)

	// pcounter moved past the highest imported number.
	var counter int
	require.NoError(t, s.db.QueryRow("SELECT pcounter FROM project WHERE ID = 10074").Scan(&counter))
	assert.Equal(t, 56, counter)
}

func TestAddIssuesKeepsHigherCounter(t *testing.T) {
	s := newTestStore(t)
	seedReferenceData(t, s)
	_, err := s.db.Exec("UPDATE project SET pcounter = 200 WHERE ID = 10074")
	require.NoError(t, err)

	issues := []*IssueRow{newIssueRow(54, 1, "Open")}
	require.NoError(t, s.AddIssues(context.Background(), 10074, issues, map[int]*jira.Workflow{0: jira.DefaultWorkflow()}))

	var counter int
	require.NoError(t, s.db.QueryRow("SELECT pcounter FROM project WHERE ID = 10074").Scan(&counter))
	assert.Equal(t, 200, counter)
}

func TestAddLabels(t *testing.T) {
	s := newTestStore(t)
	seedReferenceData(t, s)
	ctx := context.Background()

	issue := newIssueRow(54, 1, "Open")
	issue.ID = 11000
	issue.Labels = []string{"legacy", "import"}
	_, err := s.db.Exec("INSERT INTO label (ID, ISSUE, LABEL) VALUES (1, 11000, 'stale')")
	require.NoError(t, err)

	require.NoError(t, s.AddLabels(ctx, []*IssueRow{issue}))

	rows, err := s.db.Query("SELECT LABEL FROM label WHERE ISSUE = 11000 ORDER BY LABEL")
	require.NoError(t, err)
	defer rows.Close()
	var labels []string
	for rows.Next() {
		var l string
		require.NoError(t, rows.Scan(&l))
		labels = append(labels, l)
	}
	require.NoError(t, rows.Err())
	// 'stale' is not part of the imported set, so it was removed.
	assert.Equal(t, []string{"import", "legacy"}, labels)
}

func TestAddChanges(t *testing.T) {
	s := newTestStore(t)
	date := time.Date(2014, 3, 2, 9, 0, 0, 0, time.Local)
	changes := []ChangeRow{
		{IssueID: 11000, FromStatus: 1, FromStatusText: "Open", ToStatus: 4, ToStatusText: "Resolved", Author: "fdaugan", Date: date},
		{IssueID: 11000, FromStatus: 4, FromStatusText: "Resolved", ToStatus: 6, ToStatusText: "Closed", Author: "fdaugan", Date: date.Add(time.Hour)},
	}

	require.NoError(t, s.AddChanges(context.Background(), changes))

	var count int
	require.NoError(t, s.db.QueryRow("SELECT COUNT(*) FROM changegroup WHERE issueid = 11000").Scan(&count))
	assert.Equal(t, 2, count)
	var field, old, new_ string
	require.NoError(t, s.db.QueryRow(
		"SELECT FIELD, OLDSTRING, NEWSTRING FROM changeitem ORDER BY ID LIMIT 1").Scan(&field, &old, &new_))
	assert.Equal(t, "status", field)
	assert.Equal(t, "Open", old)
	assert.Equal(t, "Resolved", new_)
}

func TestAssociateCustomFieldValues(t *testing.T) {
	s := newTestStore(t)
	issue := newIssueRow(54, 1, "Open")
	issue.ID = 11000
	issue.CustomFields = []CustomFieldValue{
		{FieldID: 10000, Column: ColumnString, Value: 20000},
		{FieldID: 10000, Column: ColumnString, Value: 20001},
		{FieldID: 10001, Column: ColumnText, Value: "free text"},
	}

	require.NoError(t, s.AssociateCustomFieldValues(context.Background(), []*IssueRow{issue}))

	var count int
	require.NoError(t, s.db.QueryRow(
		"SELECT COUNT(*) FROM customfieldvalue WHERE ISSUE = 11000 AND CUSTOMFIELD = 10000 AND STRINGVALUE IS NOT NULL").Scan(&count))
	assert.Equal(t, 2, count)
	var text string
	require.NoError(t, s.db.QueryRow(
		"SELECT TEXTVALUE FROM customfieldvalue WHERE ISSUE = 11000 AND CUSTOMFIELD = 10001").Scan(&text))
	assert.Equal(t, "free text", text)
}

func TestAssociateComponentsAndVersions(t *testing.T) {
	s := newTestStore(t)
	issue := newIssueRow(54, 1, "Open")
	issue.ID = 11000
	issue.Components = []int{10000}
	issue.Versions = []int{10100}
	issue.FixedVersions = []int{10100}

	require.NoError(t, s.AssociateComponentsAndVersions(context.Background(), []*IssueRow{issue}))

	rows, err := s.db.Query(
		"SELECT SINK_NODE_ENTITY, ASSOCIATION_TYPE FROM nodeassociation WHERE SOURCE_NODE_ID = 11000 ORDER BY ASSOCIATION_TYPE")
	require.NoError(t, err)
	defer rows.Close()
	var got [][2]string
	for rows.Next() {
		var entity, assoc string
		require.NoError(t, rows.Scan(&entity, &assoc))
		got = append(got, [2]string{entity, assoc})
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, [][2]string{
		{"Component", "IssueComponent"},
		{"Version", "IssueFixVersion"},
		{"Version", "IssueVersion"},
	}, got)
}
