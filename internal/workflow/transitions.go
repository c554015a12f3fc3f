// Package workflow holds the state machines of the document hierarchy as
// explicit transition tables, plus the guard predicates applied on top of
// them. The tables know nothing about persistence or HTTP; handlers look up
// the next status here and reject illegal (state, action) pairs centrally.
package workflow

import (
	"fmt"

	"satriarisk/backend/internal/models"
)

// Action names a workflow operation attempted against a document.
type Action string

const (
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionArchive     Action = "archive"
	ActionStartReview Action = "start_review"
	ActionRevise      Action = "revise"
	ActionActivate    Action = "activate"
	ActionDeactivate  Action = "deactivate"
)

// ErrIllegalTransition marks a (state, action) pair the tables do not allow.
type ErrIllegalTransition struct {
	Entity string
	State  string
	Action Action
}

func (e *ErrIllegalTransition) Error() string {
	return fmt.Sprintf("action %q is not allowed while %s is %s", e.Action, e.Entity, e.State)
}

var contextTransitions = map[models.ContextStatus]map[Action]models.ContextStatus{
	models.ContextInactive: {
		ActionActivate: models.ContextActive,
		ActionArchive:  models.ContextArchived,
	},
	models.ContextActive: {
		ActionDeactivate: models.ContextInactive,
	},
	// ARCHIVED is terminal.
	models.ContextArchived: {},
}

// Worksheet reject returns the document to DRAFT so the owner can resubmit.
var worksheetTransitions = map[models.WorksheetStatus]map[Action]models.WorksheetStatus{
	models.WorksheetDraft: {
		ActionSubmit:  models.WorksheetSubmitted,
		ActionArchive: models.WorksheetArchived,
	},
	models.WorksheetSubmitted: {
		ActionApprove: models.WorksheetApproved,
		ActionReject:  models.WorksheetDraft,
		ActionArchive: models.WorksheetArchived,
	},
	models.WorksheetApproved: {
		ActionArchive: models.WorksheetArchived,
	},
	models.WorksheetArchived: {},
}

// Assessment reject lands on REJECTED, not DRAFT; the owner runs the revise
// action to re-edit.
var assessmentTransitions = map[models.AssessmentStatus]map[Action]models.AssessmentStatus{
	models.AssessmentDraft: {
		ActionSubmit:  models.AssessmentSubmitted,
		ActionArchive: models.AssessmentArchived,
	},
	models.AssessmentSubmitted: {
		ActionStartReview: models.AssessmentInReview,
		ActionApprove:     models.AssessmentApproved,
		ActionReject:      models.AssessmentRejected,
		ActionArchive:     models.AssessmentArchived,
	},
	models.AssessmentInReview: {
		ActionApprove: models.AssessmentApproved,
		ActionReject:  models.AssessmentRejected,
		ActionArchive: models.AssessmentArchived,
	},
	models.AssessmentApproved: {
		ActionArchive: models.AssessmentArchived,
	},
	models.AssessmentRejected: {
		ActionRevise:  models.AssessmentDraft,
		ActionArchive: models.AssessmentArchived,
	},
	models.AssessmentArchived: {},
}

// NextContextStatus resolves a context transition or reports it illegal.
func NextContextStatus(current models.ContextStatus, action Action) (models.ContextStatus, error) {
	if next, ok := contextTransitions[current][action]; ok {
		return next, nil
	}
	return "", &ErrIllegalTransition{Entity: "context", State: string(current), Action: action}
}

// NextWorksheetStatus resolves a worksheet transition or reports it illegal.
func NextWorksheetStatus(current models.WorksheetStatus, action Action) (models.WorksheetStatus, error) {
	if next, ok := worksheetTransitions[current][action]; ok {
		return next, nil
	}
	return "", &ErrIllegalTransition{Entity: "worksheet", State: string(current), Action: action}
}

// NextAssessmentStatus resolves an assessment transition or reports it illegal.
func NextAssessmentStatus(current models.AssessmentStatus, action Action) (models.AssessmentStatus, error) {
	if next, ok := assessmentTransitions[current][action]; ok {
		return next, nil
	}
	return "", &ErrIllegalTransition{Entity: "assessment", State: string(current), Action: action}
}

// WorksheetMutable reports whether worksheet content (name, items,
// mitigations) may still change.
func WorksheetMutable(status models.WorksheetStatus) bool {
	return status == models.WorksheetDraft
}

// AssessmentEditable reports whether the assessment itself may be updated by
// its owner.
func AssessmentEditable(status models.AssessmentStatus) bool {
	return status == models.AssessmentDraft || status == models.AssessmentRejected
}

// ContextConfigurable reports whether a context's categories, scales and
// matrix cells may be mutated. An ACTIVE context must be deactivated first;
// an ARCHIVED one is permanently frozen.
func ContextConfigurable(status models.ContextStatus) bool {
	return status == models.ContextInactive
}
