package workflow

import (
	"testing"

	"satriarisk/backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestNextWorksheetStatus(t *testing.T) {
	testCases := []struct {
		name      string
		current   models.WorksheetStatus
		action    Action
		expected  models.WorksheetStatus
		expectErr bool
	}{
		{"submit from draft", models.WorksheetDraft, ActionSubmit, models.WorksheetSubmitted, false},
		{"approve from submitted", models.WorksheetSubmitted, ActionApprove, models.WorksheetApproved, false},
		{"reject returns to draft", models.WorksheetSubmitted, ActionReject, models.WorksheetDraft, false},
		{"archive from draft", models.WorksheetDraft, ActionArchive, models.WorksheetArchived, false},
		{"archive from submitted", models.WorksheetSubmitted, ActionArchive, models.WorksheetArchived, false},
		{"archive from approved", models.WorksheetApproved, ActionArchive, models.WorksheetArchived, false},
		{"approve from draft is illegal", models.WorksheetDraft, ActionApprove, "", true},
		{"submit from submitted is illegal", models.WorksheetSubmitted, ActionSubmit, "", true},
		{"submit from approved is illegal", models.WorksheetApproved, ActionSubmit, "", true},
		{"archive from archived is illegal", models.WorksheetArchived, ActionArchive, "", true},
		{"reject from approved is illegal", models.WorksheetApproved, ActionReject, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := NextWorksheetStatus(tc.current, tc.action)
			if tc.expectErr {
				assert.Error(t, err)
				var illegal *ErrIllegalTransition
				assert.ErrorAs(t, err, &illegal)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, next)
			}
		})
	}
}

func TestNextAssessmentStatus(t *testing.T) {
	testCases := []struct {
		name      string
		current   models.AssessmentStatus
		action    Action
		expected  models.AssessmentStatus
		expectErr bool
	}{
		{"submit from draft", models.AssessmentDraft, ActionSubmit, models.AssessmentSubmitted, false},
		{"start review from submitted", models.AssessmentSubmitted, ActionStartReview, models.AssessmentInReview, false},
		{"approve from submitted", models.AssessmentSubmitted, ActionApprove, models.AssessmentApproved, false},
		{"approve from in_review", models.AssessmentInReview, ActionApprove, models.AssessmentApproved, false},
		{"reject lands on rejected, not draft", models.AssessmentSubmitted, ActionReject, models.AssessmentRejected, false},
		{"reject from in_review", models.AssessmentInReview, ActionReject, models.AssessmentRejected, false},
		{"revise returns rejected to draft", models.AssessmentRejected, ActionRevise, models.AssessmentDraft, false},
		{"archive from any non-archived", models.AssessmentApproved, ActionArchive, models.AssessmentArchived, false},
		{"revise from draft is illegal", models.AssessmentDraft, ActionRevise, "", true},
		{"approve from draft is illegal", models.AssessmentDraft, ActionApprove, "", true},
		{"submit from rejected is illegal", models.AssessmentRejected, ActionSubmit, "", true},
		{"archive from archived is illegal", models.AssessmentArchived, ActionArchive, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := NextAssessmentStatus(tc.current, tc.action)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, next)
			}
		})
	}
}

func TestNextContextStatus(t *testing.T) {
	testCases := []struct {
		name      string
		current   models.ContextStatus
		action    Action
		expected  models.ContextStatus
		expectErr bool
	}{
		{"activate from inactive", models.ContextInactive, ActionActivate, models.ContextActive, false},
		{"deactivate from active", models.ContextActive, ActionDeactivate, models.ContextInactive, false},
		{"archive from inactive", models.ContextInactive, ActionArchive, models.ContextArchived, false},
		{"re-activating an active context is illegal", models.ContextActive, ActionActivate, "", true},
		{"activating an archived context is illegal", models.ContextArchived, ActionActivate, "", true},
		{"archiving an active context is illegal", models.ContextActive, ActionArchive, "", true},
		{"archiving an archived context is illegal", models.ContextArchived, ActionArchive, "", true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := NextContextStatus(tc.current, tc.action)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expected, next)
			}
		})
	}
}

func TestStateHelpers(t *testing.T) {
	assert.True(t, WorksheetMutable(models.WorksheetDraft))
	assert.False(t, WorksheetMutable(models.WorksheetSubmitted))
	assert.False(t, WorksheetMutable(models.WorksheetApproved))
	assert.False(t, WorksheetMutable(models.WorksheetArchived))

	assert.True(t, AssessmentEditable(models.AssessmentDraft))
	assert.True(t, AssessmentEditable(models.AssessmentRejected))
	assert.False(t, AssessmentEditable(models.AssessmentSubmitted))
	assert.False(t, AssessmentEditable(models.AssessmentApproved))

	assert.True(t, ContextConfigurable(models.ContextInactive))
	assert.False(t, ContextConfigurable(models.ContextActive))
	assert.False(t, ContextConfigurable(models.ContextArchived))
}
