package upload

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/telemat/jiraload/jira/dao"
)

// Entry is one raw change-log row, progressively enriched by the pipeline:
// the normalizer fills the raw fields, the chronology pass adds parsed
// dates, the resolver adds tracker identifiers.
type Entry struct {
	Line int

	Issue    string
	IssueNum int

	Status   string
	StatusID int

	Summary     string
	Description string

	Resolution          string
	ResolutionID        *int
	ResolutionDate      string
	ResolutionDateValid *time.Time

	DueDate      string
	DueDateValid *time.Time

	Type   string
	TypeID int

	Priority   string
	PriorityID int

	Labels       string
	LabelSet     []string
	Components   string
	ComponentSet []string
	FixedVersion string
	FixedSet     []string
	Version      string
	VersionSet   []string

	Date      string
	DateValid time.Time

	Assignee string
	Reporter string
	Author   string

	// CustomFields holds raw cell text keyed by custom field name.
	CustomFields map[string]string
	// CustomValues holds the converted values, filled by the resolver.
	CustomValues map[string][]dao.CustomFieldValue
}

// Key returns the issue reference used in error messages.
func (e *Entry) Key() string {
	return e.Issue
}

// Date patterns accepted by the syntax validator: the four textual layouts
// with optional time of day, or a decimal spreadsheet serial.
const (
	dateFR      = `\d\d/\d\d/\d\d\d\d`
	dateISO     = `\d\d\d\d-\d\d-\d\d`
	dateISOB    = `\d\d\d\d/\d\d/\d\d`
	dateEN      = `\d\d?\.\d\d?\.\d\d\d\d`
	timeOfDay   = `\s+\d\d:\d\d(:\d\d)?`
	dateDecimal = `\d+([.,]\d+)`
)

var (
	datePattern  = regexp.MustCompile(`^((` + dateFR + `|` + dateISO + `|` + dateISOB + `|` + dateEN + `)(` + timeOfDay + `)?|` + dateDecimal + `)$`)
	issuePattern = regexp.MustCompile(`^(\w+-)?[1-9]\d*$`)
	listPattern  = regexp.MustCompile(`^[^,\s]+(\s*,\s*[^,\s]+)*$`)
	userPattern  = regexp.MustCompile(`^[^\s]{3,20}$`)
)

// validateEntries applies the field-level syntax rules to every row and
// aggregates all violations, never stopping at the first one.
func validateEntries(entries []*Entry) error {
	var violations []FieldViolation
	add := func(line int, field, message string) {
		violations = append(violations, FieldViolation{Line: line, Field: field, Message: message})
	}
	for _, e := range entries {
		checkPattern(add, e.Line, "issue", e.Issue, issuePattern, true, "an issue key such as MDA-124")
		checkLength(add, e.Line, "status", e.Status, 2, 0, true)
		checkLength(add, e.Line, "summary", e.Summary, 2, 250, true)
		checkLength(add, e.Line, "description", e.Description, 2, 0, false)
		checkLength(add, e.Line, "resolution", e.Resolution, 2, 0, false)
		checkPattern(add, e.Line, "resolutionDate", e.ResolutionDate, datePattern, false, "a date")
		checkPattern(add, e.Line, "dueDate", e.DueDate, datePattern, false, "a date")
		checkLength(add, e.Line, "type", e.Type, 1, 0, true)
		checkLength(add, e.Line, "priority", e.Priority, 1, 0, true)
		checkPattern(add, e.Line, "labels", e.Labels, listPattern, false, "a comma separated list")
		checkPattern(add, e.Line, "components", e.Components, listPattern, false, "a comma separated list")
		checkPattern(add, e.Line, "fixedVersion", e.FixedVersion, listPattern, false, "a comma separated list")
		checkPattern(add, e.Line, "version", e.Version, listPattern, false, "a comma separated list")
		checkPattern(add, e.Line, "date", e.Date, datePattern, true, "a date")
		checkPattern(add, e.Line, "assignee", e.Assignee, userPattern, true, "a user name")
		checkPattern(add, e.Line, "reporter", e.Reporter, userPattern, true, "a user name")
		checkPattern(add, e.Line, "author", e.Author, userPattern, true, "a user name")
	}
	if len(violations) > 0 {
		return &SyntaxError{Violations: violations}
	}
	return nil
}

func checkPattern(add func(int, string, string), line int, field, value string, pattern *regexp.Regexp, required bool, expected string) {
	if value == "" {
		if required {
			add(line, field, "must not be blank")
		}
		return
	}
	if !pattern.MatchString(value) {
		add(line, field, fmt.Sprintf("invalid value %q, expected %s", value, expected))
	}
}

func checkLength(add func(int, string, string), line int, field, value string, min, max int, required bool) {
	if value == "" {
		if required {
			add(line, field, "must not be blank")
		}
		return
	}
	length := len([]rune(value))
	if length < min {
		add(line, field, fmt.Sprintf("length must be at least %d", min))
	}
	if max > 0 && length > max {
		add(line, field, fmt.Sprintf("length must be at most %d", max))
	}
}

// splitItems splits a comma separated cell into a sorted set of trimmed,
// non-blank values.
func splitItems(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	seen := make(map[string]struct{})
	for _, item := range strings.Split(raw, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			seen[item] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for item := range seen {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}
