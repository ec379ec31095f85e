// Package upload implements the staged CSV import pipeline: syntax
// validation, reference resolution, workflow checking, preview and
// transactional bulk persistence into the target tracker.
package upload

import (
	"strings"

	"github.com/telemat/jiraload/errors"
)

// Mode selects how far the pipeline runs. Each mode is a superset of the
// previous one.
type Mode string

const (
	// ModeSyntax stops after field-level validation and chronology checks.
	ModeSyntax Mode = "SYNTAX"
	// ModeValidation adds reference resolution and workflow checks.
	ModeValidation Mode = "VALIDATION"
	// ModePreview adds the diff against existing tracker data, without writing.
	ModePreview Mode = "PREVIEW"
	// ModeFull commits the import and triggers post-import synchronization.
	ModeFull Mode = "FULL"
)

var modeRank = map[Mode]int{ModeSyntax: 0, ModeValidation: 1, ModePreview: 2, ModeFull: 3}

// ParseMode validates a mode name, case-insensitively.
func ParseMode(raw string) (Mode, error) {
	mode := Mode(strings.ToUpper(raw))
	if _, ok := modeRank[mode]; !ok {
		return "", errors.Newf("unknown upload mode %q, expected SYNTAX, VALIDATION, PREVIEW or FULL", raw)
	}
	return mode, nil
}

// AtLeast reports whether the mode includes the stages of the other one.
func (m Mode) AtLeast(other Mode) bool {
	return modeRank[m] >= modeRank[other]
}
