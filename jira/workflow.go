// Package jira models the pieces of the legacy tracker schema the import
// pipeline manipulates: workflows, projects and date conventions.
package jira

import (
	"regexp"
	"strconv"
	"strings"
)

// Step is one workflow step: the internal identifier the tracker's state
// machine runs on, and its display name.
type Step struct {
	ID   int
	Name string
}

// Workflow maps status names to workflow steps. Immutable once built.
type Workflow struct {
	// Name is the workflow's name, and also its identifier.
	Name string

	// StatusToStep maps a status display name to its step.
	StatusToStep map[string]Step
}

// Step returns the step bound to the given status name.
func (w *Workflow) Step(status string) (Step, bool) {
	step, ok := w.StatusToStep[status]
	return step, ok
}

// DefaultWorkflowName is the implicit workflow every tracker installation
// carries for projects without an explicit workflow scheme.
const DefaultWorkflowName = "jira"

// DefaultWorkflow returns the tracker's built-in 'jira' workflow mapping.
func DefaultWorkflow() *Workflow {
	return &Workflow{
		Name: DefaultWorkflowName,
		StatusToStep: map[string]Step{
			"Open":        {ID: 1, Name: "Open"},
			"In Progress": {ID: 3, Name: "In Progress"},
			"Resolved":    {ID: 4, Name: "Resolved"},
			"Reopened":    {ID: 5, Name: "Reopened"},
			"Closed":      {ID: 6, Name: "Closed"},
		},
	}
}

// Workflow descriptor patterns matching step and status binding lines.
var (
	stepPattern   = regexp.MustCompile(`<step id="(\d+)" name="([^"]+)">`)
	statusPattern = regexp.MustCompile(`<meta name="jira.status.id">(\d+)</meta>`)
)

// ParseWorkflow builds a workflow from the tracker's stored descriptor. The
// descriptor is a line-oriented XML dump, stored with escaped quotes and
// literal \n sequences, so it is unescaped and scanned line by line rather
// than fed to an XML decoder. A `<step id=...>` line opens a pending step;
// the next `jira.status.id` meta line binds it to the status name found in
// the supplied status table. Bindings whose status id is unknown are dropped.
func ParseWorkflow(name, descriptor string, statuses map[int]string) *Workflow {
	unescaped := strings.ReplaceAll(strings.ReplaceAll(descriptor, `\"`, `"`), `\n`, "\n")
	lines := strings.Split(strings.ReplaceAll(unescaped, "\r\n", "\n"), "\n")

	statusToStep := make(map[string]Step)
	var pending *Step
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(trimmed, "<step id="):
			match := stepPattern.FindStringSubmatch(trimmed)
			if match == nil {
				continue
			}
			id, _ := strconv.Atoi(match[1])
			pending = &Step{ID: id, Name: match[2]}
		case strings.HasPrefix(trimmed, `<meta name="jira.status.id">`):
			match := statusPattern.FindStringSubmatch(trimmed)
			if match == nil || pending == nil {
				continue
			}
			statusID, _ := strconv.Atoi(match[1])
			if statusName, ok := statuses[statusID]; ok {
				statusToStep[statusName] = *pending
			}
			pending = nil
		}
	}

	return &Workflow{Name: name, StatusToStep: statusToStep}
}
