package upload

import (
	"github.com/telemat/jiraload/jira"
	"github.com/telemat/jiraload/jira/dao"
)

// importContext is the mutable state of one pipeline run. It is owned by a
// single Run invocation and discarded when it returns.
type importContext struct {
	target *dao.Store
	pkey   string

	entries []*Entry

	// issueOrder lists the distinct issue numbers in order of first
	// appearance, the iteration order for every per-issue pass.
	issueOrder []int

	// Distinct referenced names per category.
	requiredStatuses     map[string]struct{}
	requiredPriorities   map[string]struct{}
	requiredTypes        map[string]struct{}
	requiredUsers        map[string]struct{}
	requiredCustomFields map[string]struct{}
	requiredResolutions  map[string]struct{}

	// Components and versions referenced by entries. Missing ones are
	// created, not rejected.
	completeComponents map[string]struct{}
	completeVersions   map[string]struct{}

	// Resolved identifier maps.
	statuses           map[int]string
	invertedStatuses   map[string]int
	priorities         map[string]int
	resolutions        map[string]int
	types              map[string]int
	customFields       map[string]*dao.CustomField
	existingComponents map[string]int
	existingVersions   map[string]int

	// Diff against existing tracker data, computed in preview.
	newComponents []string
	newVersions   []string

	// changes groups entries per issue number, in file order.
	changes map[int][]*Entry

	typeToWorkflow map[int]*jira.Workflow
}

func newImportContext(target *dao.Store, pkey string) *importContext {
	return &importContext{
		target:               target,
		pkey:                 pkey,
		requiredStatuses:     make(map[string]struct{}),
		requiredPriorities:   make(map[string]struct{}),
		requiredTypes:        make(map[string]struct{}),
		requiredUsers:        make(map[string]struct{}),
		requiredCustomFields: make(map[string]struct{}),
		requiredResolutions:  make(map[string]struct{}),
		completeComponents:   make(map[string]struct{}),
		completeVersions:     make(map[string]struct{}),
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}
