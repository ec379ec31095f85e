package upload

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/telemat/jiraload/jira"
	"github.com/telemat/jiraload/jira/dao"
)

func joinSorted(values []string) string {
	sorted := append([]string(nil), values...)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// collectRequired walks the entries once, gathering the distinct referenced
// names per category, the component/version sets, and the issue number
// bounds written into the status record.
func (c *importContext) collectRequired(status *ImportStatus) {
	minIssue := c.entries[0].IssueNum
	maxIssue := minIssue
	for _, entry := range c.entries {
		if entry.IssueNum < minIssue {
			minIssue = entry.IssueNum
		}
		if entry.IssueNum > maxIssue {
			maxIssue = entry.IssueNum
		}

		c.requiredStatuses[entry.Status] = struct{}{}
		c.requiredPriorities[entry.Priority] = struct{}{}
		c.requiredTypes[entry.Type] = struct{}{}
		c.requiredUsers[entry.Assignee] = struct{}{}
		c.requiredUsers[entry.Reporter] = struct{}{}
		c.requiredUsers[entry.Author] = struct{}{}
		for name := range entry.CustomFields {
			c.requiredCustomFields[name] = struct{}{}
		}
		if entry.Resolution != "" {
			c.requiredResolutions[entry.Resolution] = struct{}{}
		}

		entry.VersionSet = splitItems(entry.Version)
		entry.FixedSet = splitItems(entry.FixedVersion)
		entry.ComponentSet = splitItems(entry.Components)
		entry.LabelSet = splitItems(entry.Labels)
		for _, v := range entry.VersionSet {
			c.completeVersions[v] = struct{}{}
		}
		for _, v := range entry.FixedSet {
			c.completeVersions[v] = struct{}{}
		}
		for _, v := range entry.ComponentSet {
			c.completeComponents[v] = struct{}{}
		}
	}
	status.MinIssue = &minIssue
	status.MaxIssue = &maxIssue
}

// checkRequired compares the referenced names of one category against the
// resolved ones and aggregates every miss into a single error.
func checkRequired[T any](field, category string, existing map[string]T, required map[string]struct{}) error {
	var missing []string
	for name := range required {
		if _, ok := existing[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return &ReferenceError{Field: field, Category: category, Missing: missing}
	}
	return nil
}

func (c *importContext) resolveStatuses(ctx context.Context) error {
	inverted, err := c.target.Statuses(ctx, keys(c.requiredStatuses))
	if err != nil {
		return err
	}
	c.invertedStatuses = inverted
	c.statuses = make(map[int]string, len(inverted))
	for name, id := range inverted {
		c.statuses[id] = name
	}
	return checkRequired("status", "statuses", inverted, c.requiredStatuses)
}

func (c *importContext) resolvePriorities(ctx context.Context) error {
	priorities, err := c.target.Priorities(ctx)
	if err != nil {
		return err
	}
	c.priorities = priorities
	return checkRequired("priority", "priorities", priorities, c.requiredPriorities)
}

func (c *importContext) resolveResolutions(ctx context.Context) error {
	resolutions, err := c.target.Resolutions(ctx)
	if err != nil {
		return err
	}
	c.resolutions = resolutions
	return checkRequired("resolution", "resolutions", resolutions, c.requiredResolutions)
}

func (c *importContext) resolveTypes(ctx context.Context) error {
	types, err := c.target.Types(ctx)
	if err != nil {
		return err
	}
	c.types = types
	return checkRequired("type", "types", types, c.requiredTypes)
}

// resolveCustomFields loads the referenced custom field definitions and
// converts every raw cell through the field's type converter, replacing
// text with typed, persistable values.
func (c *importContext) resolveCustomFields(ctx context.Context) error {
	fields, err := c.target.CustomFields(ctx, keys(c.requiredCustomFields))
	if err != nil {
		return err
	}
	c.customFields = fields
	if err := checkRequired("cf", "custom fields", fields, c.requiredCustomFields); err != nil {
		return err
	}
	for _, entry := range c.entries {
		for name, raw := range entry.CustomFields {
			values, err := fields[name].ConvertValue(raw)
			if err != nil {
				return &ReferenceError{Field: "cf", Category: "custom field values", Message: err.Error()}
			}
			if entry.CustomValues == nil {
				entry.CustomValues = make(map[string][]dao.CustomFieldValue)
			}
			entry.CustomValues[name] = values
		}
	}
	return nil
}

func (c *importContext) resolveUsers(ctx context.Context) error {
	users, err := c.target.Users(ctx, keys(c.requiredUsers))
	if err != nil {
		return err
	}
	return checkRequired("assignee", "assignees/reporters/authors", users, c.requiredUsers)
}

// convertTextToID stamps the resolved identifiers onto every entry. All
// categories have been checked, so the lookups cannot miss.
func (c *importContext) convertTextToID() {
	for _, entry := range c.entries {
		entry.StatusID = c.invertedStatuses[entry.Status]
		entry.PriorityID = c.priorities[entry.Priority]
		entry.TypeID = c.types[entry.Type]
		if entry.Resolution != "" {
			if id, ok := c.resolutions[entry.Resolution]; ok {
				resolved := id
				entry.ResolutionID = &resolved
			}
		}
	}
}

// resolveWorkflows loads the type-to-workflow mapping of the project and
// parses each distinct workflow at most once. A workflow name with no
// stored descriptor means the tracker's implicit default workflow.
func (c *importContext) resolveWorkflows(ctx context.Context, project int) error {
	typeToName, err := c.target.TypesToWorkflow(ctx, project)
	if err != nil {
		return err
	}
	statusNames, err := c.target.StatusNames(ctx)
	if err != nil {
		return err
	}
	parsed := make(map[string]*jira.Workflow)
	c.typeToWorkflow = make(map[int]*jira.Workflow, len(typeToName))
	for typeID, name := range typeToName {
		workflow, ok := parsed[name]
		if !ok {
			descriptor, found, err := c.target.WorkflowDescriptor(ctx, name)
			if err != nil {
				return err
			}
			if found {
				workflow = jira.ParseWorkflow(name, descriptor, statusNames)
			} else {
				workflow = jira.DefaultWorkflow()
			}
			parsed[name] = workflow
		}
		c.typeToWorkflow[typeID] = workflow
	}
	return nil
}

// checkTypesAgainstWorkflow verifies every referenced type reaches a
// workflow. The check is skipped when the scheme carries a catch-all
// entry keyed by the sentinel type zero.
func (c *importContext) checkTypesAgainstWorkflow() error {
	if _, ok := c.typeToWorkflow[0]; ok {
		return nil
	}
	for name := range c.requiredTypes {
		if _, ok := c.typeToWorkflow[c.types[name]]; !ok {
			return &WorkflowMismatchError{Message: fmt.Sprintf(
				"specified type %q exists but is not mapped to a workflow and there is no default association", name)}
		}
	}
	return nil
}

// checkStatusAgainstWorkflow verifies every referenced status is reachable
// from at least one workflow of this import.
func (c *importContext) checkStatusAgainstWorkflow() error {
	known := make(map[string]struct{})
	for _, workflow := range c.typeToWorkflow {
		for status := range workflow.StatusToStep {
			known[status] = struct{}{}
		}
	}
	var unmanaged []string
	for _, status := range c.statuses {
		if _, ok := known[status]; !ok {
			unmanaged = append(unmanaged, status)
		}
	}
	if len(unmanaged) > 0 {
		return &WorkflowMismatchError{Message: fmt.Sprintf(
			"at least one specified status exists but is not managed in the workflow: %s",
			joinSorted(unmanaged))}
	}
	return nil
}
