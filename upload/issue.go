package upload

import (
	"fmt"
	"sort"

	"github.com/telemat/jiraload/jira/dao"
)

// finalIssueRows builds the final-state snapshot of every issue: the first
// entry gives creation facts, the last one everything else.
func (c *importContext) finalIssueRows() []*dao.IssueRow {
	issues := make([]*dao.IssueRow, 0, len(c.issueOrder))
	for _, num := range c.issueOrder {
		entries := c.changes[num]
		first := entries[0]
		last := entries[len(entries)-1]

		row := &dao.IssueRow{
			IssueNum:       num,
			Key:            fmt.Sprintf("%s-%d", c.pkey, num),
			Type:           last.TypeID,
			Status:         last.StatusID,
			StatusText:     c.statuses[last.StatusID],
			Created:        first.DateValid,
			Updated:        last.DateValid,
			Reporter:       last.Reporter,
			Author:         first.Author,
			Summary:        last.Summary,
			Resolution:     last.ResolutionID,
			ResolutionDate: last.ResolutionDateValid,
			DueDate:        last.DueDateValid,
			Components:     resolveItems(c.existingComponents, last.ComponentSet),
			Versions:       resolveItems(c.existingVersions, last.VersionSet),
			FixedVersions:  resolveItems(c.existingVersions, last.FixedSet),
			Labels:         last.LabelSet,
			CustomFields:   flattenCustomValues(last.CustomValues),
		}
		priority := last.PriorityID
		row.Priority = &priority
		assignee := last.Assignee
		row.Assignee = &assignee
		if last.Description != "" {
			description := last.Description
			row.Description = &description
		}
		issues = append(issues, row)
	}
	return issues
}

// resolveItems maps item names to identifiers, in the given order. Every
// name exists by now, missing ones were created beforehand.
func resolveItems(existing map[string]int, names []string) []int {
	out := make([]int, len(names))
	for i, name := range names {
		out[i] = existing[name]
	}
	return out
}

// flattenCustomValues orders the converted values by field name, so inserts
// are deterministic.
func flattenCustomValues(values map[string][]dao.CustomFieldValue) []dao.CustomFieldValue {
	if len(values) == 0 {
		return nil
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	var out []dao.CustomFieldValue
	for _, name := range names {
		out = append(out, values[name]...)
	}
	return out
}

// changeRows derives the audit history: one row per issue each time the
// resolved status changes along its ordered entries.
func (c *importContext) changeRows(issues []*dao.IssueRow) []dao.ChangeRow {
	var rows []dao.ChangeRow
	for _, issue := range issues {
		last := c.changes[issue.IssueNum][0]
		for _, entry := range c.changes[issue.IssueNum] {
			if entry.StatusID != last.StatusID {
				rows = append(rows, dao.ChangeRow{
					IssueID:        issue.ID,
					FromStatus:     last.StatusID,
					FromStatusText: c.statuses[last.StatusID],
					ToStatus:       entry.StatusID,
					ToStatusText:   c.statuses[entry.StatusID],
					Author:         entry.Author,
					Date:           entry.DateValid,
				})
				last = entry
			}
		}
	}
	return rows
}
