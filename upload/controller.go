package upload

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/telemat/jiraload/db"
	"github.com/telemat/jiraload/jira"
	"github.com/telemat/jiraload/jira/dao"
	"github.com/telemat/jiraload/subscription"
)

// Synchronizer triggers the optional post-commit synchronization of the
// tracker: authenticate, clear caches, re-index. Best effort, its outcome
// never fails the import.
type Synchronizer interface {
	Synchronize(ctx context.Context, sub *subscription.Subscription, project int, scriptRunner bool) bool
}

// TargetOpener opens a connection to a tracker database.
type TargetOpener func(dsn string, log *zap.SugaredLogger) (*sql.DB, error)

// Controller drives the staged import pipeline against one subscription.
type Controller struct {
	statuses   *StatusStore
	sync       Synchronizer
	log        *zap.SugaredLogger
	openTarget TargetOpener

	// LogEvery throttles bulk insert progress logging.
	LogEvery int
}

// NewController creates a pipeline controller. sync may be nil when no
// post-commit synchronization is wanted.
func NewController(statuses *StatusStore, sync Synchronizer, log *zap.SugaredLogger) *Controller {
	return &Controller{
		statuses:   statuses,
		sync:       sync,
		log:        log.Named("upload"),
		openTarget: db.OpenTarget,
	}
}

// Run executes the pipeline for one change log, as far as the mode asks.
// The returned status is finalized on every exit path, success or failure,
// which also releases the subscription's import lock.
func (ctl *Controller) Run(ctx context.Context, sub *subscription.Subscription, input io.Reader,
	charset string, mode Mode, author string) (*ImportStatus, error) {
	status, err := ctl.statuses.Start(ctx, sub.ID, author, mode)
	if err != nil {
		return nil, err
	}
	failed := true
	defer func() {
		if err := ctl.statuses.Finish(ctx, status, failed); err != nil {
			ctl.log.Errorw("could not finalize import status", "run", status.ID, "error", err)
		}
	}()
	if err := ctl.run(ctx, sub, input, charset, status); err != nil {
		return status, err
	}
	failed = false
	return status, nil
}

func (ctl *Controller) run(ctx context.Context, sub *subscription.Subscription, input io.Reader,
	charset string, status *ImportStatus) error {
	ctl.log.Infow("validate subscription settings", "subscription", sub.Name)
	conn, err := ctl.openTarget(sub.DSN, ctl.log)
	if err != nil {
		return err
	}
	defer conn.Close()
	target := dao.New(conn, ctl.log)
	target.LogEvery = ctl.LogEvery

	c := newImportContext(target, sub.Pkey)
	if err := ctl.validateSubscription(ctx, sub, c, status); err != nil {
		return err
	}
	if err := ctl.validateSyntax(ctx, input, charset, c, status); err != nil {
		return err
	}
	if status.Mode == ModeSyntax {
		return nil
	}
	if err := ctl.validateRequiredData(ctx, c, status); err != nil {
		return err
	}
	if err := ctl.validateWorkflowData(ctx, c, status); err != nil {
		return err
	}
	if status.Mode == ModeValidation {
		return nil
	}
	if err := ctl.prepareCompleteData(ctx, c, status); err != nil {
		return err
	}
	if status.Mode == ModePreview {
		return nil
	}
	return ctl.persistData(ctx, sub, c, status)
}

func (ctl *Controller) validateSubscription(ctx context.Context, sub *subscription.Subscription,
	c *importContext, status *ImportStatus) error {
	project := sub.Project
	pkey := sub.Pkey
	canSynchronize := sub.AdminUser != ""
	status.Jira = &project
	status.Pkey = &pkey
	status.CanSynchronize = &canSynchronize
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("check the tracker version")
	version, err := c.target.TrackerVersion(ctx)
	if err != nil {
		return err
	}
	if !jira.VersionAtLeast(version, jira.MinVersion) {
		return &ValidationError{Field: "jira", Message: fmt.Sprintf(
			"required tracker version is %s, and the current version is %s", jira.MinVersion, version)}
	}
	status.JiraVersion = &version
	scriptRunner, err := c.target.HasScriptRunner(ctx)
	if err != nil {
		return err
	}
	status.ScriptRunner = &scriptRunner
	return ctl.statuses.NextStep(ctx, status)
}

func (ctl *Controller) validateSyntax(ctx context.Context, input io.Reader, charset string,
	c *importContext, status *ImportStatus) error {
	ctl.log.Info("read changes to import")
	entries, err := readEntries(input, charset)
	if err != nil {
		return err
	}
	changes := len(entries)
	status.Changes = &changes
	if changes == 0 {
		return &ValidationError{Field: "id", Message: "empty file, no change found"}
	}
	c.entries = entries
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Infow("validate syntax", "changes", changes)
	if err := validateEntries(entries); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("validate chronology and issue prefix")
	if err := c.checkChronologyAndPkey(); err != nil {
		return err
	}
	issues := len(c.issueOrder)
	status.Issues = &issues
	from := entries[0].DateValid
	to := entries[len(entries)-1].DateValid
	status.IssueFrom = &from
	status.IssueTo = &to
	return ctl.statuses.NextStep(ctx, status)
}

func (ctl *Controller) validateRequiredData(ctx context.Context, c *importContext, status *ImportStatus) error {
	ctl.log.Infow("collect required data", "issues", len(c.issueOrder))
	c.collectRequired(status)
	setIntPtr(&status.Statuses, len(c.requiredStatuses))
	setIntPtr(&status.Priorities, len(c.requiredPriorities))
	setIntPtr(&status.Resolutions, len(c.requiredResolutions))
	setIntPtr(&status.Types, len(c.requiredTypes))
	setIntPtr(&status.Users, len(c.requiredUsers))
	setIntPtr(&status.CustomFields, len(c.requiredCustomFields))
	setIntPtr(&status.Versions, len(c.completeVersions))
	setIntPtr(&status.Components, len(c.completeComponents))
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"statuses", c.resolveStatuses},
		{"priorities", c.resolvePriorities},
		{"resolutions", c.resolveResolutions},
		{"types", c.resolveTypes},
		{"custom fields", c.resolveCustomFields},
		{"users", c.resolveUsers},
	}
	for _, step := range steps {
		ctl.log.Infow("load and check required data", "category", step.name)
		if err := step.run(ctx); err != nil {
			return err
		}
		if err := ctl.statuses.NextStep(ctx, status); err != nil {
			return err
		}
	}

	ctl.log.Info("convert texts to identifiers")
	c.convertTextToID()
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("compute changes")
	if err := c.groupChanges(); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("compute labels")
	labels := 0
	for _, num := range c.issueOrder {
		entries := c.changes[num]
		labels += len(entries[len(entries)-1].LabelSet)
	}
	status.Labels = &labels
	return ctl.statuses.NextStep(ctx, status)
}

func (ctl *Controller) validateWorkflowData(ctx context.Context, c *importContext, status *ImportStatus) error {
	ctl.log.Info("compute workflow types")
	if err := c.resolveWorkflows(ctx, *status.Jira); err != nil {
		return err
	}
	if err := c.checkTypesAgainstWorkflow(); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("compute workflow statuses")
	if err := c.checkStatusAgainstWorkflow(); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("compute resolution flow")
	if err := c.checkResolutionFlow(); err != nil {
		return err
	}
	return ctl.statuses.NextStep(ctx, status)
}

func (ctl *Controller) prepareCompleteData(ctx context.Context, c *importContext, status *ImportStatus) error {
	ctl.log.Info("get existing components")
	existing, err := c.target.Components(ctx, *status.Jira)
	if err != nil {
		return err
	}
	c.existingComponents = existing
	c.newComponents = missingNames(existing, c.completeComponents)
	setIntPtr(&status.NewComponents, len(c.newComponents))
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("get existing versions")
	existing, err = c.target.Versions(ctx, *status.Jira)
	if err != nil {
		return err
	}
	c.existingVersions = existing
	c.newVersions = missingNames(existing, c.completeVersions)
	setIntPtr(&status.NewVersions, len(c.newVersions))
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("get existing issues to update")
	existingNums, err := c.target.ExistingIssueNumbers(ctx, *status.Jira, *status.MinIssue, *status.MaxIssue)
	if err != nil {
		return err
	}
	imported := make(map[int]struct{}, len(c.issueOrder))
	for _, num := range c.issueOrder {
		imported[num] = struct{}{}
	}
	var conflicts []int
	for _, num := range existingNums {
		if _, ok := imported[num]; ok {
			conflicts = append(conflicts, num)
		}
	}
	setIntPtr(&status.NewIssues, len(c.issueOrder)-len(conflicts))
	if len(conflicts) > 0 {
		return &UnsupportedOperationError{
			Count:      len(conflicts),
			FirstIssue: fmt.Sprintf("%s-%d", c.pkey, conflicts[0]),
		}
	}
	return ctl.statuses.NextStep(ctx, status)
}

func (ctl *Controller) persistData(ctx context.Context, sub *subscription.Subscription,
	c *importContext, status *ImportStatus) error {
	ctl.log.Info("create new components")
	created, err := c.target.AddComponents(ctx, *status.Jira, c.newComponents)
	if err != nil {
		return err
	}
	mergeIDs(c.existingComponents, created)
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("create new versions")
	created, err = c.target.AddVersions(ctx, *status.Jira, c.newVersions)
	if err != nil {
		return err
	}
	mergeIDs(c.existingVersions, created)
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("create issues")
	issues := c.finalIssueRows()
	if err := c.target.AddIssues(ctx, *status.Jira, issues, c.typeToWorkflow); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("associate components and versions to issues")
	if err := c.target.AssociateComponentsAndVersions(ctx, issues); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("associate custom fields")
	if err := c.target.AssociateCustomFieldValues(ctx, issues); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("associate labels")
	if err := c.target.AddLabels(ctx, issues); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("add status change history")
	changes := c.changeRows(issues)
	setIntPtr(&status.StatusChanges, len(changes))
	if err := c.target.AddChanges(ctx, changes); err != nil {
		return err
	}
	if err := ctl.statuses.NextStep(ctx, status); err != nil {
		return err
	}

	ctl.log.Info("synchronize tracker cache and index")
	if *status.CanSynchronize && ctl.sync != nil {
		ok := ctl.sync.Synchronize(ctx, sub, *status.Jira, status.ScriptRunner != nil && *status.ScriptRunner)
		status.Synchronized = &ok
	}
	return ctl.statuses.NextStep(ctx, status)
}

func setIntPtr(dst **int, n int) {
	v := n
	*dst = &v
}

func missingNames(existing map[string]int, required map[string]struct{}) []string {
	var out []string
	for name := range required {
		if _, ok := existing[name]; !ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func mergeIDs(dst map[string]int, src map[string]int) {
	for name, id := range src {
		dst[name] = id
	}
}
