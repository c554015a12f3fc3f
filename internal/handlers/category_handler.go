package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"
	"satriarisk/backend/internal/workflow"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryPayload struct {
	Name        string `json:"name" binding:"required,min=2,max=255"`
	Description string `json:"description"`
	SortOrder   int    `json:"sort_order"`
}

type ScalePayload struct {
	Level       int    `json:"level" binding:"required,min=1"`
	Label       string `json:"label" binding:"required,max=255"`
	Description string `json:"description"`
}

// configurableContext loads the context from the :konteksId param and checks
// that it can still be edited. On failure it writes the response and returns
// nil.
func configurableContext(c *gin.Context, db *gorm.DB) *models.RiskContext {
	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return nil
	}

	var ctx models.RiskContext
	if err := db.Where("id = ?", ctxID).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk context not found"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk context: " + err.Error()})
		return nil
	}

	if !workflow.ContextConfigurable(ctx.Status) {
		c.JSON(http.StatusForbidden, gin.H{"error": fmt.Sprintf("Risk context configuration is frozen while %s", ctx.Status)})
		return nil
	}
	return &ctx
}

// requireReviewer writes a 403 and returns false when the caller lacks a
// committee role.
func requireReviewer(c *gin.Context) (workflow.Actor, bool) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Caller identity not found in token"})
		return actor, false
	}
	if !actor.IsReviewer() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only the risk committee can perform this operation"})
		return actor, false
	}
	return actor, true
}

// categoryInContext loads a category from :categoryId and verifies it belongs
// to the given context. A category that exists under another context is
// reported as not found, never leaked.
func categoryInContext(c *gin.Context, db *gorm.DB, contextID uuid.UUID) *models.RiskCategory {
	catID, err := uuid.Parse(c.Param("categoryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID format"})
		return nil
	}

	var cat models.RiskCategory
	if err := db.Where("id = ? AND risk_context_id = ?", catID, contextID).First(&cat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Risk category not found in this context"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch risk category: " + err.Error()})
		return nil
	}
	return &cat
}

func CreateCategoryHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}

	var payload CategoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	var count int64
	if err := db.Model(&models.RiskCategory{}).
		Where("risk_context_id = ? AND name = ?", ctx.ID, payload.Name).
		Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check category name: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A category with this name already exists in the context"})
		return
	}

	cat := models.RiskCategory{
		RiskContextID: ctx.ID,
		Name:          payload.Name,
		Description:   payload.Description,
		SortOrder:     payload.SortOrder,
	}
	if err := db.Create(&cat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create category: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func ListCategoriesHandler(c *gin.Context) {
	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}
	db := database.GetDB()

	var categories []models.RiskCategory
	err = db.Where("risk_context_id = ?", ctxID).
		Preload("LikelihoodScales", func(db *gorm.DB) *gorm.DB { return db.Order("level asc") }).
		Preload("ImpactScales", func(db *gorm.DB) *gorm.DB { return db.Order("level asc") }).
		Order("sort_order asc").Find(&categories).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list categories: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, categories)
}

func UpdateCategoryHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}
	cat := categoryInContext(c, db, ctx.ID)
	if cat == nil {
		return
	}

	var payload CategoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	if payload.Name != cat.Name {
		var count int64
		if err := db.Model(&models.RiskCategory{}).
			Where("risk_context_id = ? AND name = ? AND id <> ?", ctx.ID, payload.Name, cat.ID).
			Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check category name: " + err.Error()})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "A category with this name already exists in the context"})
			return
		}
	}

	cat.Name = payload.Name
	cat.Description = payload.Description
	cat.SortOrder = payload.SortOrder
	if err := db.Save(cat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update category: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, cat)
}

func DeleteCategoryHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}
	cat := categoryInContext(c, db, ctx.ID)
	if cat == nil {
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("risk_category_id = ?", cat.ID).Delete(&models.LikelihoodScale{}).Error; err != nil {
			return err
		}
		if err := tx.Where("risk_category_id = ?", cat.ID).Delete(&models.ImpactScale{}).Error; err != nil {
			return err
		}
		return tx.Delete(cat).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete category: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Category deleted successfully"})
}

// scaleKind distinguishes the two scale tables so one set of handlers serves
// both route families.
type scaleKind string

const (
	likelihoodKind scaleKind = "likelihood"
	impactKind     scaleKind = "impact"
)

func createScale(c *gin.Context, kind scaleKind) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}
	cat := categoryInContext(c, db, ctx.ID)
	if cat == nil {
		return
	}

	var payload ScalePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}
	if payload.Level > ctx.MatrixSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Scale level %d exceeds the matrix size %d", payload.Level, ctx.MatrixSize)})
		return
	}

	var count int64
	var query *gorm.DB
	if kind == likelihoodKind {
		query = db.Model(&models.LikelihoodScale{})
	} else {
		query = db.Model(&models.ImpactScale{})
	}
	if err := query.Where("risk_category_id = ? AND level = ?", cat.ID, payload.Level).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check scale level: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("A %s scale for level %d already exists in this category", kind, payload.Level)})
		return
	}

	if kind == likelihoodKind {
		scale := models.LikelihoodScale{
			RiskCategoryID: cat.ID,
			Level:          payload.Level,
			Label:          payload.Label,
			Description:    payload.Description,
		}
		if err := db.Create(&scale).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create scale: " + err.Error()})
			return
		}
		c.JSON(http.StatusCreated, scale)
		return
	}

	scale := models.ImpactScale{
		RiskCategoryID: cat.ID,
		Level:          payload.Level,
		Label:          payload.Label,
		Description:    payload.Description,
	}
	if err := db.Create(&scale).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create scale: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, scale)
}

func deleteScale(c *gin.Context, kind scaleKind) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}
	cat := categoryInContext(c, db, ctx.ID)
	if cat == nil {
		return
	}

	scaleID, err := uuid.Parse(c.Param("scaleId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid scale ID format"})
		return
	}

	var res *gorm.DB
	if kind == likelihoodKind {
		res = db.Where("id = ? AND risk_category_id = ?", scaleID, cat.ID).Delete(&models.LikelihoodScale{})
	} else {
		res = db.Where("id = ? AND risk_category_id = ?", scaleID, cat.ID).Delete(&models.ImpactScale{})
	}
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete scale: " + res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Scale not found in this category"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Scale deleted successfully"})
}

func CreateLikelihoodScaleHandler(c *gin.Context) { createScale(c, likelihoodKind) }
func CreateImpactScaleHandler(c *gin.Context)     { createScale(c, impactKind) }
func DeleteLikelihoodScaleHandler(c *gin.Context) { deleteScale(c, likelihoodKind) }
func DeleteImpactScaleHandler(c *gin.Context)     { deleteScale(c, impactKind) }
