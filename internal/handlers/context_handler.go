package handlers

import (
	"errors"
	"fmt"
	"net/http"
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

// MaxMatrixSize bounds the likelihood×impact grid side length.
const MaxMatrixSize = 10

// ContextPayload defines the structure for creating or updating a risk context.
type ContextPayload struct {
	Name              string           `json:"name" binding:"required,min=3,max=255"`
	Code              string           `json:"code" binding:"required,min=2,max=50"`
	Description       string           `json:"description"`
	PeriodStart       time.Time        `json:"period_start" binding:"required"`
	PeriodEnd         time.Time        `json:"period_end" binding:"required"`
	MatrixSize        int              `json:"matrix_size" binding:"required,min=2,max=10"`
	RiskAppetiteLevel models.RiskLevel `json:"risk_appetite_level" binding:"omitempty,oneof=LOW MEDIUM HIGH CRITICAL"`
}

// CreateContextHandler creates a new risk context. Contexts are always
// created INACTIVE; activation is a separate, transactional operation.
func CreateContextHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	if !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the risk committee can manage risk contexts"})
		return
	}

	var payload ContextPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if !payload.PeriodEnd.After(payload.PeriodStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "period_end must be after period_start"})
		return
	}

	db := database.GetDB()

	var count int64
	if err := db.Model(&models.RiskContext{}).Where("code = ?", payload.Code).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check context code: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A risk context with this code already exists"})
		return
	}

	ctx := models.RiskContext{
		Name:              payload.Name,
		Code:              payload.Code,
		Description:       payload.Description,
		PeriodStart:       payload.PeriodStart,
		PeriodEnd:         payload.PeriodEnd,
		MatrixSize:        payload.MatrixSize,
		RiskAppetiteLevel: payload.RiskAppetiteLevel,
		Status:            models.ContextInactive,
	}
	if err := db.Create(&ctx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create risk context: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, ctx)
}

// ListContextsHandler lists all risk contexts, paginated.
func ListContextsHandler(c *gin.Context) {
	db := database.GetDB()
	page, pageSize := GetPaginationParams(c)

	var total int64
	if err := db.Model(&models.RiskContext{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count risk contexts: " + err.Error()})
		return
	}

	var contexts []models.RiskContext
	if err := db.Scopes(PaginateScope(page, pageSize)).Order("created_at desc").Find(&contexts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list risk contexts: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, NewPaginatedResponse(contexts, total, page, pageSize))
}

// GetContextHandler fetches one risk context with its categories and matrix.
func GetContextHandler(c *gin.Context) {
	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}

	db := database.GetDB()
	var ctx models.RiskContext
	err = db.Preload("Categories", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc") }).
		Preload("Categories.LikelihoodScales", func(db *gorm.DB) *gorm.DB { return db.Order("level asc") }).
		Preload("Categories.ImpactScales", func(db *gorm.DB) *gorm.DB { return db.Order("level asc") }).
		Preload("MatrixCells").
		Where("id = ?", ctxID).First(&ctx).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk context not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, ctx)
}

// UpdateContextHandler updates a context while it is still configurable.
// The matrix size is frozen once any scale exists.
func UpdateContextHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	if !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the risk committee can manage risk contexts"})
		return
	}

	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}

	var payload ContextPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()
	var ctx models.RiskContext
	if err := db.Where("id = ?", ctxID).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk context not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	if !workflow.ContextConfigurable(ctx.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("Risk context cannot be updated while %s", ctx.Status)})
		return
	}

	if payload.MatrixSize != ctx.MatrixSize {
		var scaleCount int64
		err := db.Model(&models.LikelihoodScale{}).
			Joins("JOIN risk_categories ON risk_categories.id = likelihood_scales.risk_category_id").
			Where("risk_categories.risk_context_id = ?", ctx.ID).
			Count(&scaleCount).Error
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing scales: " + err.Error()})
			return
		}
		if scaleCount == 0 {
			err = db.Model(&models.ImpactScale{}).
				Joins("JOIN risk_categories ON risk_categories.id = impact_scales.risk_category_id").
				Where("risk_categories.risk_context_id = ?", ctx.ID).
				Count(&scaleCount).Error
			if err != nil {
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check existing scales: " + err.Error()})
				return
			}
		}
		if scaleCount > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "Matrix size cannot change once scales exist; delete the scales first"})
			return
		}
	}

	ctx.Name = payload.Name
	ctx.Code = payload.Code
	ctx.Description = payload.Description
	ctx.PeriodStart = payload.PeriodStart
	ctx.PeriodEnd = payload.PeriodEnd
	ctx.MatrixSize = payload.MatrixSize
	ctx.RiskAppetiteLevel = payload.RiskAppetiteLevel

	if err := db.Save(&ctx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update risk context: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, ctx)
}

// activationErrors sweeps every activation precondition for a context and
// returns the full list of failures, so the caller sees all missing
// prerequisites in one response.
func activationErrors(db *gorm.DB, ctx *models.RiskContext) ([]string, error) {
	var problems []string

	var categories []models.RiskCategory
	if err := db.Where("risk_context_id = ?", ctx.ID).Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch categories: %w", err)
	}
	if len(categories) == 0 {
		problems = append(problems, "context has no risk categories; at least 1 is required")
	}

	for _, cat := range categories {
		var likelihoodCount, impactCount int64
		if err := db.Model(&models.LikelihoodScale{}).Where("risk_category_id = ?", cat.ID).Count(&likelihoodCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count likelihood scales: %w", err)
		}
		if err := db.Model(&models.ImpactScale{}).Where("risk_category_id = ?", cat.ID).Count(&impactCount).Error; err != nil {
			return nil, fmt.Errorf("failed to count impact scales: %w", err)
		}
		if int(likelihoodCount) != ctx.MatrixSize {
			problems = append(problems, fmt.Sprintf("category %q has %d likelihood scales, needs %d", cat.Name, likelihoodCount, ctx.MatrixSize))
		}
		if int(impactCount) != ctx.MatrixSize {
			problems = append(problems, fmt.Sprintf("category %q has %d impact scales, needs %d", cat.Name, impactCount, ctx.MatrixSize))
		}
	}

	var cellCount int64
	if err := db.Model(&models.RiskMatrixCell{}).Where("risk_context_id = ?", ctx.ID).Count(&cellCount).Error; err != nil {
		return nil, fmt.Errorf("failed to count matrix cells: %w", err)
	}
	expected := ctx.MatrixSize * ctx.MatrixSize
	if int(cellCount) != expected {
		problems = append(problems, fmt.Sprintf("risk matrix has %d cells, needs %d", cellCount, expected))
	}

	return problems, nil
}

// ActivateContextHandler promotes a context to ACTIVE. The demote-all plus
// promote-one step runs in one transaction; that transaction is what keeps
// the single-active-context invariant under concurrent activation attempts.
func ActivateContextHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	if !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the risk committee can activate a risk context"})
		return
	}

	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}

	db := database.GetDB()
	var ctx models.RiskContext
	if err := db.Where("id = ?", ctxID).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk context not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	// Re-activating an ACTIVE context is rejected, not silently accepted.
	if ctx.Status == models.ContextActive {
		c.JSON(http.StatusConflict, gin.H{"error": "Risk context is already active"})
		return
	}
	if _, err := workflow.NextContextStatus(ctx.Status, workflow.ActionActivate); err != nil {
		respondWorkflowError(c, err)
		return
	}

	problems, err := activationErrors(db, &ctx)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Risk context configuration is incomplete",
			"errors": problems,
		})
		return
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.RiskContext{}).
			Where("status = ?", models.ContextActive).
			Update("status", models.ContextInactive).Error; err != nil {
			return err
		}
		return tx.Model(&models.RiskContext{}).
			Where("id = ?", ctx.ID).
			Update("status", models.ContextActive).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to activate risk context: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("context", string(workflow.ActionActivate)).Inc()
	srlog.L.Info("Risk context activated",
		zap.String("contextID", ctx.ID.String()),
		zap.String("actorID", actor.UserID.String()))

	ctx.Status = models.ContextActive
	c.JSON(http.StatusOK, ctx)
}

// DeactivateContextHandler returns an ACTIVE context to INACTIVE so its
// configuration can be edited again.
func DeactivateContextHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	if !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the risk committee can deactivate a risk context"})
		return
	}

	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}

	db := database.GetDB()
	var ctx models.RiskContext
	if err := db.Where("id = ?", ctxID).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk context not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	next, err := workflow.NextContextStatus(ctx.Status, workflow.ActionDeactivate)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	ctx.Status = next
	if err := db.Save(&ctx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate risk context: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("context", string(workflow.ActionDeactivate)).Inc()
	c.JSON(http.StatusOK, ctx)
}

// ArchiveContextHandler archives an INACTIVE context. ARCHIVED is terminal;
// an active context must be deactivated first.
func ArchiveContextHandler(c *gin.Context) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return
	}
	if !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the risk committee can archive a risk context"})
		return
	}

	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}

	db := database.GetDB()
	var ctx models.RiskContext
	if err := db.Where("id = ?", ctxID).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk context not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	next, err := workflow.NextContextStatus(ctx.Status, workflow.ActionArchive)
	if err != nil {
		respondWorkflowError(c, err)
		return
	}

	ctx.Status = next
	if err := db.Save(&ctx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to archive risk context: " + err.Error()})
		return
	}

	srmetrics.WorkflowTransitionCounter.WithLabelValues("context", string(workflow.ActionArchive)).Inc()
	c.JSON(http.StatusOK, ctx)
}
