package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"
	"satriarisk/backend/internal/riskmatrix"
	"satriarisk/backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ItemPayload struct {
	RiskCategoryID   uuid.UUID  `json:"risk_category_id" binding:"required"`
	RiskAssessmentID *uuid.UUID `json:"risk_assessment_id"`
	AssetID          *uuid.UUID `json:"asset_id"`
	Title            string     `json:"title" binding:"required,min=3,max=255"`
	Description      string     `json:"description"`

	InherentLikelihood int `json:"inherent_likelihood" binding:"required,min=1"`
	InherentImpact     int `json:"inherent_impact" binding:"required,min=1"`
	ResidualLikelihood int `json:"residual_likelihood" binding:"required,min=1"`
	ResidualImpact     int `json:"residual_impact" binding:"required,min=1"`

	TreatmentOption    models.TreatmentOption `json:"treatment_option" binding:"omitempty,oneof=ACCEPT MITIGATE TRANSFER AVOID"`
	TreatmentRationale string                 `json:"treatment_rationale"`
}

// itemInWorksheet loads the item from :itemId scoped to the worksheet.
func itemInWorksheet(c *gin.Context, db *gorm.DB, worksheetID uuid.UUID) *models.RiskAssessmentItem {
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID format"})
		return nil
	}

	var item models.RiskAssessmentItem
	if err := db.Where("id = ? AND risk_worksheet_id = ?", itemID, worksheetID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk item not found in this worksheet"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk item: " + err.Error()})
		return nil
	}
	return &item
}

// validateItemReferences checks that the payload's category belongs to the
// worksheet's context, that a referenced assessment belongs to the worksheet
// and that a referenced asset belongs to the worksheet's unit. Cross-scope
// references surface as 404, never as a success with a dangling link.
func validateItemReferences(c *gin.Context, db *gorm.DB, ws *models.RiskWorksheet, payload *ItemPayload) bool {
	var count int64
	if err := db.Model(&models.RiskCategory{}).
		Where("id = ? AND risk_context_id = ?", payload.RiskCategoryID, ws.RiskContextID).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check risk category: " + err.Error()})
		return false
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Risk category not found in the worksheet's context"})
		return false
	}

	if payload.RiskAssessmentID != nil {
		if err := db.Model(&models.RiskAssessment{}).
			Where("id = ? AND risk_worksheet_id = ?", *payload.RiskAssessmentID, ws.ID).
			Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check assessment: " + err.Error()})
			return false
		}
		if count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk assessment not found in this worksheet"})
			return false
		}
	}

	if payload.AssetID != nil {
		if err := db.Model(&models.Asset{}).
			Where("id = ? AND work_unit_id = ?", *payload.AssetID, ws.WorkUnitID).
			Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check asset: " + err.Error()})
			return false
		}
		if count == 0 {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found in the worksheet's work unit"})
			return false
		}
	}
	return true
}

// scoreItem bounds-checks the four scores against the context's matrix size,
// resolves both risk levels from the matrix and enforces the appetite
// constraint on the chosen treatment. The derived levels are written into
// item; any failure has already been written to the response.
func scoreItem(c *gin.Context, db *gorm.DB, ctx *models.RiskContext, item *models.RiskAssessmentItem, payload *ItemPayload) bool {
	for _, score := range []struct {
		name  string
		value int
	}{
		{"inherent_likelihood", payload.InherentLikelihood},
		{"inherent_impact", payload.InherentImpact},
		{"residual_likelihood", payload.ResidualLikelihood},
		{"residual_impact", payload.ResidualImpact},
	} {
		if score.value > ctx.MatrixSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s %d exceeds the matrix size %d", score.name, score.value, ctx.MatrixSize)})
			return false
		}
	}

	inherent, err := riskmatrix.Resolve(db, ctx.ID, payload.InherentLikelihood, payload.InherentImpact)
	if err != nil {
		if !respondWorkflowError(c, err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return false
	}
	residual, err := riskmatrix.Resolve(db, ctx.ID, payload.ResidualLikelihood, payload.ResidualImpact)
	if err != nil {
		if !respondWorkflowError(c, err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return false
	}

	if err := riskmatrix.ValidateTreatment(residual, ctx.RiskAppetiteLevel, payload.TreatmentOption); err != nil {
		respondWorkflowError(c, err)
		return false
	}

	item.InherentLikelihood = payload.InherentLikelihood
	item.InherentImpact = payload.InherentImpact
	item.InherentRiskLevel = inherent
	item.ResidualLikelihood = payload.ResidualLikelihood
	item.ResidualImpact = payload.ResidualImpact
	item.ResidualRiskLevel = residual
	item.TreatmentOption = payload.TreatmentOption
	item.TreatmentRationale = payload.TreatmentRationale
	return true
}

// CreateItemHandler creates a risk item with an R-prefixed sequential code.
// Scores are resolved through the worksheet's context matrix on the way in;
// an uncovered combination or a treatment outside the appetite rejects the
// whole request.
func CreateItemHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can add risk items"})
		return
	}
	if !workflow.WorksheetMutable(ws.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Risk items can only be added while the worksheet is DRAFT"})
		return
	}

	var payload ItemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	var ctx models.RiskContext
	if err := db.Where("id = ?", ws.RiskContextID).First(&ctx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	if !validateItemReferences(c, db, ws, &payload) {
		return
	}

	item := models.RiskAssessmentItem{
		RiskWorksheetID:  ws.ID,
		RiskAssessmentID: payload.RiskAssessmentID,
		RiskCategoryID:   payload.RiskCategoryID,
		AssetID:          payload.AssetID,
		Title:            payload.Title,
		Description:      payload.Description,
	}
	if !scoreItem(c, db, &ctx, &item, &payload) {
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var locked models.RiskWorksheet
		if err := tx.Where("id = ?", ws.ID).First(&locked).Error; err != nil {
			return err
		}
		seq := locked.ItemSeq + 1
		if err := tx.Model(&models.RiskWorksheet{}).Where("id = ?", ws.ID).
			Update("item_seq", seq).Error; err != nil {
			return err
		}
		item.Code = fmt.Sprintf("R%03d", seq)
		return tx.Create(&item).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create risk item: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, item)
}

func ListItemsHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}

	query := db.Model(&models.RiskAssessmentItem{}).Where("risk_worksheet_id = ?", ws.ID)
	if level := c.Query("residual_level"); level != "" {
		query = query.Where("residual_risk_level = ?", level)
	}
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("risk_category_id = ?", categoryID)
	}

	var items []models.RiskAssessmentItem
	if err := query.Preload("Mitigations", func(db *gorm.DB) *gorm.DB { return db.Order("code asc") }).
		Order("code asc").Find(&items).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list risk items: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, items)
}

func GetItemHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	ws := worksheetInUnit(c, db, unitID)
	if ws == nil {
		return
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID format"})
		return
	}

	var item models.RiskAssessmentItem
	err = db.Preload("Mitigations", func(db *gorm.DB) *gorm.DB { return db.Order("code asc") }).
		Where("id = ? AND risk_worksheet_id = ?", itemID, ws.ID).First(&item).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk item not found in this worksheet"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk item: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

// UpdateItemHandler rescores the item. Derived levels are always recomputed
// from the current matrix; they are never trusted from the client or left
// stale.
func UpdateItemHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can edit risk items"})
		return
	}
	if !workflow.WorksheetMutable(ws.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Risk items can only be edited while the worksheet is DRAFT"})
		return
	}

	item := itemInWorksheet(c, db, ws.ID)
	if item == nil {
		return
	}

	var payload ItemPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	var ctx models.RiskContext
	if err := db.Where("id = ?", ws.RiskContextID).First(&ctx).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return
	}

	if !validateItemReferences(c, db, ws, &payload) {
		return
	}

	item.RiskCategoryID = payload.RiskCategoryID
	item.RiskAssessmentID = payload.RiskAssessmentID
	item.AssetID = payload.AssetID
	item.Title = payload.Title
	item.Description = payload.Description
	if !scoreItem(c, db, &ctx, item, &payload) {
		return
	}

	if err := db.Save(item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update risk item: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, item)
}

// DeleteItemHandler removes an item and its mitigations. The worksheet's
// item counter is untouched, so the deleted code is never handed out again.
func DeleteItemHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the worksheet owner can delete risk items"})
		return
	}
	if !workflow.WorksheetMutable(ws.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Risk items can only be deleted while the worksheet is DRAFT"})
		return
	}

	item := itemInWorksheet(c, db, ws.ID)
	if item == nil {
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("risk_assessment_item_id = ?", item.ID).Delete(&models.RiskMitigation{}).Error; err != nil {
			return err
		}
		return tx.Delete(item).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete risk item: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Risk item deleted successfully"})
}
