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

type AssessmentPayload struct {
	Name        string `json:"name" binding:"required,min=3,max=255"`
	Description string `json:"description"`
}

// assessmentInWorksheet loads the assessment from :assessmentId scoped to
// the worksheet. A mismatch is a 404.
func assessmentInWorksheet(c *gin.Context, db *gorm.DB, worksheetID uuid.UUID) *models.RiskAssessment {
	aID, err := uuid.Parse(c.Param("assessmentId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid assessment ID format"})
		return nil
	}

	var a models.RiskAssessment
	if err := db.Where("id = ? AND risk_worksheet_id = ?", aID, worksheetID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk assessment not found in this worksheet"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk assessment: " + err.Error()})
		return nil
	}
	return &a
}

// CreateAssessmentHandler creates a DRAFT assessment under a worksheet. The
// code is taken from the worksheet's assessment counter inside the same
// transaction, so codes are sequential and never reused.
func CreateAssessmentHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can add assessments"})
		return
	}
	if ws.Status == models.WorksheetArchived {
		c.JSON(http.StatusForbidden, gin.H{"error": "Worksheet is archived"})
		return
	}

	var payload AssessmentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	var assessment models.RiskAssessment
	err := db.Transaction(func(tx *gorm.DB) error {
		var locked models.RiskWorksheet
		if err := tx.Where("id = ?", ws.ID).First(&locked).Error; err != nil {
			return err
		}
		seq := locked.AssessmentSeq + 1
		if err := tx.Model(&models.RiskWorksheet{}).Where("id = ?", ws.ID).
			Update("assessment_seq", seq).Error; err != nil {
			return err
		}

		assessment = models.RiskAssessment{
			RiskWorksheetID: ws.ID,
			Code:            fmt.Sprintf("A%03d", seq),
			Name:            payload.Name,
			Description:     payload.Description,
			OwnerID:         actor.UserID,
			Status:          models.AssessmentDraft,
		}
		return tx.Create(&assessment).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create assessment: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, assessment)
}

func ListAssessmentsHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}

	query := db.Model(&models.RiskAssessment{}).Where("risk_worksheet_id = ?", ws.ID)
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var assessments []models.RiskAssessment
	if err := query.Order("code asc").Find(&assessments).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list assessments: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, assessments)
}

func GetAssessmentHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}
	c.JSON(http.StatusOK, a)
}

func UpdateAssessmentHandler(c *gin.Context) {
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}
	if !actor.IsOwner(a.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the assessment owner can edit it"})
		return
	}
	if !workflow.AssessmentEditable(a.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Assessment can only be edited while DRAFT"})
		return
	}

	var payload AssessmentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	a.Name = payload.Name
	a.Description = payload.Description
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update assessment: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, a)
}

func SubmitAssessmentHandler(c *gin.Context) {
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}
	if !actor.IsOwner(a.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the assessment owner can submit it"})
		return
	}

	next, err := workflow.NextAssessmentStatus(a.Status, workflow.ActionSubmit)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	var itemCount int64
	if err := db.Model(&models.RiskAssessmentItem{}).Where("risk_assessment_id = ?", a.ID).Count(&itemCount).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count assessment items: " + err.Error()})
		return
	}
	if itemCount == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Assessment has no risk items; add at least one before submitting"})
		return
	}

	now := time.Now()
	a.Status = next
	a.SubmittedAt = &now
	a.SubmittedBy = &actor.UserID
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to submit assessment: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("assessment", string(workflow.ActionSubmit)).Inc()
	c.JSON(http.StatusOK, a)
}

func StartAssessmentReviewHandler(c *gin.Context) {
	_, ok := requireReviewer(c)
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}

	next, err := workflow.NextAssessmentStatus(a.Status, workflow.ActionStartReview)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	a.Status = next
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start review: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("assessment", string(workflow.ActionStartReview)).Inc()
	c.JSON(http.StatusOK, a)
}

func ApproveAssessmentHandler(c *gin.Context) {
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}

	next, err := workflow.NextAssessmentStatus(a.Status, workflow.ActionApprove)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	var payload ReviewPayload
	_ = c.ShouldBindJSON(&payload)

	now := time.Now()
	a.Status = next
	a.ReviewedAt = &now
	a.ReviewedBy = &actor.UserID
	a.ReviewNotes = payload.Notes
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to approve assessment: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("assessment", string(workflow.ActionApprove)).Inc()
	c.JSON(http.StatusOK, a)
}

// RejectAssessmentHandler parks the assessment in REJECTED. Unlike a
// worksheet rejection it does not drop back to DRAFT; the owner must
// explicitly revise.
func RejectAssessmentHandler(c *gin.Context) {
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}

	next, err := workflow.NextAssessmentStatus(a.Status, workflow.ActionReject)
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
	a.Status = next
	a.ReviewedAt = &now
	a.ReviewedBy = &actor.UserID
	a.ReviewNotes = payload.Notes
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reject assessment: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("assessment", string(workflow.ActionReject)).Inc()
	c.JSON(http.StatusOK, a)
}

// ReviseAssessmentHandler lets the owner pull a REJECTED assessment back to
// DRAFT, clearing the stale submission metadata.
func ReviseAssessmentHandler(c *gin.Context) {
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}
	if !actor.IsOwner(a.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the assessment owner can revise it"})
		return
	}

	next, err := workflow.NextAssessmentStatus(a.Status, workflow.ActionRevise)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	a.Status = next
	a.SubmittedAt = nil
	a.SubmittedBy = nil
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to revise assessment: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("assessment", string(workflow.ActionRevise)).Inc()
	c.JSON(http.StatusOK, a)
}

func ArchiveAssessmentHandler(c *gin.Context) {
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
	a := assessmentInWorksheet(c, db, ws.ID)
	if a == nil {
		return
	}
	if !actor.IsOwner(a.OwnerID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the assessment owner can archive it"})
		return
	}

	next, err := workflow.NextAssessmentStatus(a.Status, workflow.ActionArchive)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	a.Status = next
	if err := db.Save(a).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive assessment: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("assessment", string(workflow.ActionArchive)).Inc()
	c.JSON(http.StatusOK, a)
}
