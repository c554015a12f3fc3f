package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"
	"satriarisk/backend/internal/workflow"
	srmetrics "satriarisk/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MitigationPayload struct {
	ActionPlan string                    `json:"action_plan" binding:"required,min=3"`
	PIC        string                    `json:"pic" binding:"max=255"`
	Status     models.MitigationStatus   `json:"status" binding:"omitempty,oneof=PLANNED IN_PROGRESS COMPLETED CANCELLED"`
	Priority   models.MitigationPriority `json:"priority" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`

	PlannedStart *time.Time `json:"planned_start"`
	PlannedEnd   *time.Time `json:"planned_end"`
	ActualStart  *time.Time `json:"actual_start"`
	ActualEnd    *time.Time `json:"actual_end"`
}

type ValidationPayload struct {
	Notes string `json:"notes"`
}

// mitigationScope bundles the chain of parents a mitigation route touches.
type mitigationScope struct {
	Worksheet  *models.RiskWorksheet
	Item       *models.RiskAssessmentItem
	Mitigation *models.RiskMitigation
}

// loadMitigationScope resolves worksheet, item and (optionally) mitigation
// from the path, enforcing parent/child scoping at every hop. withMitigation
// selects whether :mitigationId is expected.
func loadMitigationScope(c *gin.Context, db *gorm.DB, withMitigation bool) *mitigationScope {
	unitID, ok := unitFromPath(c)
	if !ok {
		return nil
	}
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return nil
	}
	item := itemInWorksheet(c, db, ws.ID)
	if item == nil {
		return nil
	}

	scope := &mitigationScope{Worksheet: ws, Item: item}
	if !withMitigation {
		return scope
	}

	mID, err := uuid.Parse(c.Param("mitigationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid mitigation ID format"})
		return nil
	}
	var m models.RiskMitigation
	if err := db.Where("id = ? AND risk_assessment_item_id = ?", mID, item.ID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Mitigation not found for this risk item"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch mitigation: " + err.Error()})
		return nil
	}
	scope.Mitigation = &m
	return scope
}

// CreateMitigationHandler creates a mitigation with an M-prefixed sequential
// code taken from the item's counter inside the insert transaction.
func CreateMitigationHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	db := database.GetDB()
	scope := loadMitigationScope(c, db, false)
	if scope == nil {
		return
	}
	if !actor.IsOwner(scope.Worksheet.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can add mitigations"})
		return
	}
	if !workflow.WorksheetMutable(scope.Worksheet.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Mitigations can only be added while the worksheet is DRAFT"})
		return
	}

	var payload MitigationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if payload.Status == "" {
		payload.Status = models.MitigationPlanned
	}
	if payload.Priority == "" {
		payload.Priority = models.PriorityMedium
	}

	var m models.RiskMitigation
	err := db.Transaction(func(tx *gorm.DB) error {
		var locked models.RiskAssessmentItem
		if err := tx.Where("id = ?", scope.Item.ID).First(&locked).Error; err != nil {
			return err
		}
		seq := locked.MitigationSeq + 1
		if err := tx.Model(&models.RiskAssessmentItem{}).Where("id = ?", scope.Item.ID).
			Update("mitigation_seq", seq).Error; err != nil {
			return err
		}

		m = models.RiskMitigation{
			RiskAssessmentItemID: scope.Item.ID,
			Code:                 fmt.Sprintf("M%03d", seq),
			ActionPlan:           payload.ActionPlan,
			PIC:                  payload.PIC,
			Status:               payload.Status,
			Priority:             payload.Priority,
			PlannedStart:         payload.PlannedStart,
			PlannedEnd:           payload.PlannedEnd,
			ActualStart:          payload.ActualStart,
			ActualEnd:            payload.ActualEnd,
		}
		return tx.Create(&m).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create mitigation: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, m)
}

func ListMitigationsHandler(c *gin.Context) {
	db := database.GetDB()
	scope := loadMitigationScope(c, db, false)
	if scope == nil {
		return
	}

	var mitigations []models.RiskMitigation
	if err := db.Where("risk_assessment_item_id = ?", scope.Item.ID).
		Order("code asc").Find(&mitigations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list mitigations: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, mitigations)
}

func GetMitigationHandler(c *gin.Context) {
	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	c.JSON(http.StatusOK, scope.Mitigation)
}

// UpdateMitigationHandler edits a mitigation. A validated mitigation is
// immutable in every field.
func UpdateMitigationHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	if !actor.IsOwner(scope.Worksheet.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can edit mitigations"})
		return
	}
	if !workflow.WorksheetMutable(scope.Worksheet.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Mitigations can only be edited while the worksheet is DRAFT"})
		return
	}
	if scope.Mitigation.IsValidated {
		c.JSON(http.StatusForbidden, gin.H{"error": "A validated mitigation cannot be modified"})
		return
	}

	var payload MitigationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	m := scope.Mitigation
	m.ActionPlan = payload.ActionPlan
	m.PIC = payload.PIC
	if payload.Status != "" {
		m.Status = payload.Status
	}
	if payload.Priority != "" {
		m.Priority = payload.Priority
	}
	m.PlannedStart = payload.PlannedStart
	m.PlannedEnd = payload.PlannedEnd
	m.ActualStart = payload.ActualStart
	m.ActualEnd = payload.ActualEnd

	if err := db.Save(m).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update mitigation: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, m)
}

func DeleteMitigationHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	if !actor.IsOwner(scope.Worksheet.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can delete mitigations"})
		return
	}
	if !workflow.WorksheetMutable(scope.Worksheet.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Mitigations can only be deleted while the worksheet is DRAFT"})
		return
	}
	if scope.Mitigation.IsValidated {
		c.JSON(http.StatusForbidden, gin.H{"error": "A validated mitigation cannot be deleted"})
		return
	}

	if err := db.Delete(scope.Mitigation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete mitigation: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Mitigation deleted successfully"})
}

// ValidateMitigationHandler marks a completed mitigation as validated. The
// flag is one-way; after this the record is frozen.
func ValidateMitigationHandler(c *gin.Context) {
	actor, ok := requireReviewer(c)
	if !ok {
		return
	}
	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	m := scope.Mitigation
	if m.IsValidated {
		c.JSON(http.StatusForbidden, gin.H{"error": "Mitigation is already validated"})
		return
	}
	if m.Status != models.MitigationCompleted {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Only a COMPLETED mitigation can be validated"})
		return
	}

	var payload ValidationPayload
	_ = c.ShouldBindJSON(&payload)

	now := time.Now()
	m.IsValidated = true
	m.ValidatedAt = &now
	m.ValidatedBy = &actor.UserID
	m.ValidationNotes = payload.Notes
	m.RejectionNotes = ""
	if err := db.Save(m).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate mitigation: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("mitigation", "validate").Inc()
	c.JSON(http.StatusOK, m)
}

// RejectMitigationHandler records why validation was refused. The mitigation
// stays open for the owner to rework; only validation freezes it.
func RejectMitigationHandler(c *gin.Context) {
	_, ok := requireReviewer(c)
	if !ok {
		return
	}
	db := database.GetDB()
	scope := loadMitigationScope(c, db, true)
	if scope == nil {
		return
	}
	m := scope.Mitigation
	if m.IsValidated {
		c.JSON(http.StatusForbidden, gin.H{"error": "A validated mitigation cannot be rejected"})
		return
	}

	var payload ValidationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if len(strings.TrimSpace(payload.Notes)) < MinRejectionReasonLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A rejection reason of at least 10 characters is required"})
		return
	}

	m.RejectionNotes = payload.Notes
	if err := db.Save(m).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject mitigation: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("mitigation", "reject").Inc()
	c.JSON(http.StatusOK, m)
}

// ListPendingValidationHandler is the committee's cross-unit triage queue:
// completed, not yet validated mitigations, optionally narrowed by unit and
// priority.
func ListPendingValidationHandler(c *gin.Context) {
	_, ok := requireReviewer(c)
	if !ok {
		return
	}
	db := database.GetDB()
	page, pageSize := GetPaginationParams(c)

	query := db.Model(&models.RiskMitigation{}).
		Joins("JOIN risk_assessment_items ON risk_assessment_items.id = risk_mitigations.risk_assessment_item_id").
		Joins("JOIN risk_worksheets ON risk_worksheets.id = risk_assessment_items.risk_worksheet_id").
		Where("risk_mitigations.is_validated = ?", false).
		Where("risk_mitigations.status = ?", models.MitigationCompleted)

	if unitID := c.Query("unit_id"); unitID != "" {
		parsed, err := uuid.Parse(unitID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unit_id filter"})
			return
		}
		query = query.Where("risk_worksheets.work_unit_id = ?", parsed)
	}
	if priority := c.Query("priority"); priority != "" {
		query = query.Where("risk_mitigations.priority = ?", priority)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count pending mitigations: " + err.Error()})
		return
	}

	var mitigations []models.RiskMitigation
	if err := query.Scopes(PaginateScope(page, pageSize)).
		Order("risk_mitigations.created_at asc").
		Find(&mitigations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list pending mitigations: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(mitigations, total, page, pageSize))
}
