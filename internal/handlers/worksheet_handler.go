package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"
	"satriarisk/backend/internal/workflow"
	srlog "satriarisk/backend/pkg/log"
	srmetrics "satriarisk/backend/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MinRejectionReasonLen is the shortest acceptable rejection reason. A bare
// "no" teaches the submitter nothing.
const MinRejectionReasonLen = 10

type WorksheetPayload struct {
	Name        string `json:"name" binding:"required,min=3,max=255"`
	Description string `json:"description"`
}

type SubmitPayload struct {
	Notes string `json:"notes"`
}

type ReviewPayload struct {
	Notes string `json:"notes"`
}

// unitFromPath parses the :unitId segment.
func unitFromPath(c *gin.Context) (uuid.UUID, bool) {
	unitID, err := uuid.Parse(c.Param("unitId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid work unit ID format"})
		return uuid.Nil, false
	}
	return unitID, true
}

// worksheetInUnit loads the worksheet from :worksheetId scoped to the unit in
// the path. A worksheet that lives under another unit is a 404.
func worksheetInUnit(c *gin.Context, db *gorm.DB, unitID uuid.UUID) *models.RiskWorksheet {
	wsID, err := uuid.Parse(c.Param("worksheetId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worksheet ID format"})
		return nil
	}

	var ws models.RiskWorksheet
	if err := db.Where("id = ? AND work_unit_id = ?", wsID, unitID).First(&ws).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk worksheet not found in this work unit"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk worksheet: " + err.Error()})
		return nil
	}
	return &ws
}

// CreateWorksheetHandler creates a DRAFT worksheet bound to the currently
// ACTIVE context. Without an active context there is nothing to score
// against, so creation is refused.
func CreateWorksheetHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	if !actor.InUnit(unitID) && !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot create worksheets for another work unit"})
		return
	}

	var payload WorksheetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()

	var activeCtx models.RiskContext
	if err := db.Where("status = ?", models.ContextActive).First(&activeCtx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active risk context; activate one before creating worksheets"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch active context: " + err.Error()})
		return
	}

	var count int64
	err := db.Model(&models.RiskWorksheet{}).
		Where("work_unit_id = ? AND risk_context_id = ? AND name = ?", unitID, activeCtx.ID, payload.Name).
		Count(&count).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check worksheet name: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A worksheet with this name already exists for the unit in the active context"})
		return
	}

	ws := models.RiskWorksheet{
		WorkUnitID:    unitID,
		RiskContextID: activeCtx.ID,
		Name:          payload.Name,
		Description:   payload.Description,
		OwnerID:       actor.UserID,
		Status:        models.WorksheetDraft,
	}
	if err := db.Create(&ws).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create risk worksheet: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, ws)
}

func ListWorksheetsHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	page, pageSize := GetPaginationParams(c)

	query := db.Model(&models.RiskWorksheet{}).Where("work_unit_id = ?", unitID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count worksheets: " + err.Error()})
		return
	}

	var worksheets []models.RiskWorksheet
	if err := query.Scopes(PaginateScope(page, pageSize)).Order("created_at desc").Find(&worksheets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list worksheets: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(worksheets, total, page, pageSize))
}

func GetWorksheetHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	wsID, err := uuid.Parse(c.Param("worksheetId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid worksheet ID format"})
		return
	}

	db := database.GetDB()
	var ws models.RiskWorksheet
	err = db.Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("code asc") }).
		Preload("Items.Mitigations", func(db *gorm.DB) *gorm.DB { return db.Order("code asc") }).
		Preload("Assessments", func(db *gorm.DB) *gorm.DB { return db.Order("code asc") }).
		Where("id = ? AND work_unit_id = ?", wsID, unitID).First(&ws).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk worksheet not found in this work unit"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk worksheet: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, ws)
}

func UpdateWorksheetHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}
	if !actor.IsOwner(ws.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can edit it"})
		return
	}
	if !workflow.WorksheetMutable(ws.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Worksheet can only be edited while DRAFT"})
		return
	}

	var payload WorksheetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	if payload.Name != ws.Name {
		var count int64
		err := db.Model(&models.RiskWorksheet{}).
			Where("work_unit_id = ? AND risk_context_id = ? AND name = ? AND id <> ?",
				ws.WorkUnitID, ws.RiskContextID, payload.Name, ws.ID).
			Count(&count).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check worksheet name: " + err.Error()})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "A worksheet with this name already exists for the unit in this context"})
			return
		}
	}

	ws.Name = payload.Name
	ws.Description = payload.Description
	if err := db.Save(ws).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update risk worksheet: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, ws)
}

// SubmitWorksheetHandler moves a DRAFT worksheet to SUBMITTED. An empty
// worksheet has nothing to review, so at least one item is required.
func SubmitWorksheetHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}
	if !actor.IsOwner(ws.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can submit it"})
		return
	}

	next, err := workflow.NextWorksheetStatus(ws.Status, workflow.ActionSubmit)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	var itemCount int64
	if err := db.Model(&models.RiskAssessmentItem{}).Where("risk_worksheet_id = ?", ws.ID).Count(&itemCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count worksheet items: " + err.Error()})
		return
	}
	if itemCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Worksheet has no risk items; add at least one before submitting"})
		return
	}

	// An empty body is allowed on submit.
	var payload SubmitPayload
	_ = c.ShouldBindJSON(&payload)

	now := time.Now()
	ws.Status = next
	ws.SubmittedAt = &now
	ws.SubmittedBy = &actor.UserID
	ws.SubmissionNotes = payload.Notes
	if err := db.Save(ws).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit worksheet: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("worksheet", string(workflow.ActionSubmit)).Inc()
	srlog.L.Info("Worksheet submitted",
		zap.String("worksheetID", ws.ID.String()),
		zap.String("actorID", actor.UserID.String()))
	c.JSON(http.StatusOK, ws)
}

func ApproveWorksheetHandler(c *gin.Context) {
	actor, ok := requireReviewer(c)
	if !ok {
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}

	next, err := workflow.NextWorksheetStatus(ws.Status, workflow.ActionApprove)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	var payload ReviewPayload
	_ = c.ShouldBindJSON(&payload)

	now := time.Now()
	ws.Status = next
	ws.ReviewedAt = &now
	ws.ReviewedBy = &actor.UserID
	ws.ReviewNotes = payload.Notes
	if err := db.Save(ws).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve worksheet: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("worksheet", string(workflow.ActionApprove)).Inc()
	c.JSON(http.StatusOK, ws)
}

// RejectWorksheetHandler sends a SUBMITTED worksheet back to DRAFT. The
// submission metadata is cleared so the next submission starts clean; the
// review notes stay as the audit trail.
func RejectWorksheetHandler(c *gin.Context) {
	actor, ok := requireReviewer(c)
	if !ok {
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}

	next, err := workflow.NextWorksheetStatus(ws.Status, workflow.ActionReject)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	var payload ReviewPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if len(strings.TrimSpace(payload.Notes)) < MinRejectionReasonLen {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A rejection reason of at least 10 characters is required"})
		return
	}

	now := time.Now()
	ws.Status = next
	ws.SubmittedAt = nil
	ws.SubmittedBy = nil
	ws.SubmissionNotes = ""
	ws.ReviewedAt = &now
	ws.ReviewedBy = &actor.UserID
	ws.ReviewNotes = payload.Notes
	if err := db.Save(ws).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject worksheet: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("worksheet", string(workflow.ActionReject)).Inc()
	srlog.L.Info("Worksheet rejected",
		zap.String("worksheetID", ws.ID.String()),
		zap.String("reviewerID", actor.UserID.String()))
	c.JSON(http.StatusOK, ws)
}

// ArchiveWorksheetHandler archives a worksheet. ARCHIVED is terminal.
func ArchiveWorksheetHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}
	if !actor.IsOwner(ws.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can archive it"})
		return
	}

	next, err := workflow.NextWorksheetStatus(ws.Status, workflow.ActionArchive)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	ws.Status = next
	if err := db.Save(ws).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive worksheet: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("worksheet", string(workflow.ActionArchive)).Inc()
	c.JSON(http.StatusOK, ws)
}
