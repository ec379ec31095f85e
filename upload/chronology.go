package upload

import (
	"fmt"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/telemat/jiraload/jira"
)

// Statuses whose presence completes the resolution of an issue.
func isResolutionStatus(status string) bool {
	return status == "Resolved" || status == "Closed"
}

// checkChronologyAndPkey walks the entries in file order, splitting issue
// keys, parsing dates and enforcing the temporal rules: per-issue monotonic
// change dates, resolution date consistency, and due dates never before the
// issue's creation. It fills issueOrder with the distinct issue numbers.
func (c *importContext) checkChronologyAndPkey() error {
	lastDate := make(map[int]time.Time)
	firstDate := make(map[int]time.Time)
	for _, entry := range c.entries {
		if err := c.checkPkey(entry); err != nil {
			return err
		}

		date, err := jira.ParseDate(entry.Date)
		if err != nil {
			return &ChronologyError{Issue: entry.Key(), Field: "date",
				Message: fmt.Sprintf("unparseable date %q", entry.Date)}
		}
		if previous, ok := lastDate[entry.IssueNum]; ok && date.Before(previous) {
			return &ChronologyError{Issue: entry.Key(), Field: "date",
				Message: fmt.Sprintf("broken history between %s and %s",
					previous.Format(time.DateTime), entry.Date)}
		}
		entry.DateValid = date
		lastDate[entry.IssueNum] = date

		if err := checkResolutionDate(entry); err != nil {
			return err
		}

		if _, ok := firstDate[entry.IssueNum]; !ok {
			firstDate[entry.IssueNum] = date
			c.issueOrder = append(c.issueOrder, entry.IssueNum)
		}
		if err := checkDueDate(entry, firstDate[entry.IssueNum]); err != nil {
			return err
		}
	}
	return nil
}

// checkPkey splits the issue key into prefix and number and rejects a
// prefix not matching the subscribed project.
func (c *importContext) checkPkey(entry *Entry) error {
	issue := entry.Issue
	num := issue
	if index := strings.IndexByte(issue, '-'); index >= 0 {
		prefix := issue[:index]
		num = issue[index+1:]
		if prefix != c.pkey {
			return &ValidationError{Field: "issue", Message: fmt.Sprintf(
				"used issue prefix in import is %s, but associated project is %s, are you importing the correct file?",
				prefix, c.pkey)}
		}
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return &ValidationError{Field: "issue", Message: fmt.Sprintf("invalid issue number %q", num)}
	}
	entry.IssueNum = n
	return nil
}

// checkResolutionDate derives the resolution date/value pair: a resolution
// without a date takes the entry's own date, a date without a resolution
// takes the "Fixed" sentinel, and an explicit date must not precede the
// change date.
func checkResolutionDate(entry *Entry) error {
	if entry.ResolutionDate == "" {
		if entry.Resolution != "" {
			d := entry.DateValid
			entry.ResolutionDateValid = &d
		}
		return nil
	}
	if entry.Resolution == "" {
		entry.Resolution = "Fixed"
	}
	date, err := jira.ParseDate(entry.ResolutionDate)
	if err != nil {
		return &ChronologyError{Issue: entry.Key(), Field: "resolutionDate",
			Message: fmt.Sprintf("unparseable date %q", entry.ResolutionDate)}
	}
	if date.Before(entry.DateValid) {
		return &ChronologyError{Issue: entry.Key(), Field: "resolutionDate",
			Message: "resolution date must be greater or equals to the change date"}
	}
	entry.ResolutionDateValid = &date
	return nil
}

// checkDueDate parses the due date and rejects one before the issue's
// first-seen date.
func checkDueDate(entry *Entry, created time.Time) error {
	if entry.DueDate == "" {
		return nil
	}
	date, err := jira.ParseDate(entry.DueDate)
	if err != nil {
		return &ChronologyError{Issue: entry.Key(), Field: "dueDate",
			Message: fmt.Sprintf("unparseable date %q", entry.DueDate)}
	}
	if date.Before(created) {
		return &ChronologyError{Issue: entry.Key(), Field: "dueDate",
			Message: "due date must be greater or equals to the creation date"}
	}
	entry.DueDateValid = &date
	return nil
}

// groupChanges groups entries per issue and rejects no-op rows: a row
// identical to the immediately preceding one for the same issue across
// every business field is a corrupted export, not a change.
func (c *importContext) groupChanges() error {
	changes := make(map[int][]*Entry, len(c.issueOrder))
	for _, entry := range c.entries {
		previous := changes[entry.IssueNum]
		if len(previous) > 0 {
			last := previous[len(previous)-1]
			if entriesEqual(last, entry) {
				return &ChronologyError{Issue: entry.Key(), Field: "issue",
					Message: fmt.Sprintf("no change detected between %s and %s", last.Date, entry.Date)}
			}
		}
		changes[entry.IssueNum] = append(previous, entry)
	}
	c.changes = changes
	return nil
}

// entriesEqual compares the business fields of two rows, on resolved
// identifiers and parsed values rather than raw text.
func entriesEqual(a, b *Entry) bool {
	return a.Assignee == b.Assignee &&
		a.Author == b.Author &&
		a.Reporter == b.Reporter &&
		a.Description == b.Description &&
		a.Summary == b.Summary &&
		a.StatusID == b.StatusID &&
		a.PriorityID == b.PriorityID &&
		a.TypeID == b.TypeID &&
		intPtrEqual(a.ResolutionID, b.ResolutionID) &&
		timePtrEqual(a.ResolutionDateValid, b.ResolutionDateValid) &&
		timePtrEqual(a.DueDateValid, b.DueDateValid) &&
		slices.Equal(a.LabelSet, b.LabelSet) &&
		slices.Equal(a.ComponentSet, b.ComponentSet) &&
		slices.Equal(a.VersionSet, b.VersionSet) &&
		slices.Equal(a.FixedSet, b.FixedSet) &&
		reflect.DeepEqual(a.CustomValues, b.CustomValues)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// checkResolutionFlow walks each issue's history and enforces the
// resolution lifecycle: resolution statuses complete a missing resolution
// with the "Fixed" sentinel, and a resolution value on a non-resolution
// status is only legal after the issue has been resolved at least once.
func (c *importContext) checkResolutionFlow() error {
	for _, issue := range c.issueOrder {
		resolved := false
		for _, entry := range c.changes[issue] {
			if isResolutionStatus(entry.Status) {
				completeResolution(entry, c.resolutions)
				resolved = true
			} else if entry.Resolution != "" && !resolved {
				return &ValidationError{Field: "resolution", Message: fmt.Sprintf(
					"resolution is provided but has never been resolved for issue %s", entry.Key())}
			}
		}
	}
	return nil
}

// completeResolution defaults a resolved entry without a resolution to the
// "Fixed" sentinel, dated at the entry's own change date.
func completeResolution(entry *Entry, resolutions map[string]int) {
	if entry.Resolution != "" {
		return
	}
	entry.Resolution = "Fixed"
	d := entry.DateValid
	entry.ResolutionDateValid = &d
	if id, ok := resolutions["Fixed"]; ok {
		entry.ResolutionID = &id
	}
}
