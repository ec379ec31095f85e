package dao

import "time"

// Node entity names used by the tracker's generic association tables.
const (
	issueNode     = "Issue"
	componentNode = "Component"
	versionNode   = "Version"
)

// CustomFieldValue is one resolved custom field cell, ready to persist:
// the raw text has already been converted and the storage column chosen.
type CustomFieldValue struct {
	FieldID int
	Column  string
	Value   any
}

// IssueRow is a fully resolved issue ready for insertion. ID is zero until
// AddIssues allocates it.
type IssueRow struct {
	ID             int
	IssueNum       int
	Key            string
	Type           int
	Status         int
	StatusText     string
	Priority       *int
	Resolution     *int
	ResolutionDate *time.Time
	DueDate        *time.Time
	Created        time.Time
	Updated        time.Time
	Reporter       string
	Assignee       *string
	Author         string
	Summary        string
	Description    *string
	Components     []int
	Versions       []int
	FixedVersions  []int
	Labels         []string
	CustomFields   []CustomFieldValue
}

// ChangeRow is one status transition of an issue, persisted as a change
// group plus a single change item.
type ChangeRow struct {
	IssueID        int
	FromStatus     int
	FromStatusText string
	ToStatus       int
	ToStatusText   string
	Author         string
	Date           time.Time
}
