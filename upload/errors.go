package upload

import (
	"fmt"
	"sort"
	"strings"
)

// FieldViolation is one field-level syntax failure within a row.
type FieldViolation struct {
	Line    int
	Field   string
	Message string
}

// SyntaxError carries every field-level violation found across the whole
// input, so a broken file is fixed in one round trip instead of one error
// at a time.
type SyntaxError struct {
	Violations []FieldViolation
}

func (e *SyntaxError) Error() string {
	parts := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		parts[i] = fmt.Sprintf("line %d, %s: %s", v.Line, v.Field, v.Message)
	}
	return fmt.Sprintf("%d invalid fields: %s", len(e.Violations), strings.Join(parts, "; "))
}

// ChronologyError reports non-monotonic or inconsistent dates within the
// history of one issue, including duplicated no-change rows.
type ChronologyError struct {
	Issue   string
	Field   string
	Message string
}

func (e *ChronologyError) Error() string {
	return fmt.Sprintf("%s of issue %s: %s", e.Field, e.Issue, e.Message)
}

// ReferenceError reports every referenced name of one category that the
// target tracker does not know, or a custom field value that cannot be
// converted to the field's type.
type ReferenceError struct {
	Field    string
	Category string
	Missing  []string
	Message  string
}

func (e *ReferenceError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	missing := append([]string(nil), e.Missing...)
	sort.Strings(missing)
	return fmt.Sprintf("some %s (%d) do not exist: %s", e.Category, len(missing), strings.Join(missing, ","))
}

// WorkflowMismatchError reports a status or type that no workflow reachable
// from this import can handle.
type WorkflowMismatchError struct {
	Message string
}

func (e *WorkflowMismatchError) Error() string {
	return e.Message
}

// UnsupportedOperationError rejects an import touching issues that already
// exist, since updates are not supported.
type UnsupportedOperationError struct {
	Count      int
	FirstIssue string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("updating issues is not supported, %d issues already exist, first one is %s",
		e.Count, e.FirstIssue)
}

// ConcurrencyError rejects an import while another one is still running
// against the same subscription.
type ConcurrencyError struct {
	Subscription int64
}

func (e *ConcurrencyError) Error() string {
	return fmt.Sprintf("another import is already running for subscription %d", e.Subscription)
}

// ValidationError reports a single pre-flight failure outside the other
// categories, such as a foreign issue prefix or an unsupported tracker
// version.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
