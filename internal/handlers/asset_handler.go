package handlers

import (
	"errors"
	"net/http"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssetCategoryPayload struct {
	Name        string `json:"name" binding:"required,min=2,max=255"`
	Description string `json:"description"`
}

type AssetPayload struct {
	AssetCategoryID uuid.UUID `json:"asset_category_id" binding:"required"`
	Name            string    `json:"name" binding:"required,min=2,max=255"`
	Description     string    `json:"description"`
}

func CreateAssetCategoryHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}

	var payload AssetCategoryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.AssetCategory{}).Where("name = ?", payload.Name).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check category name: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "An asset category with this name already exists"})
		return
	}

	cat := models.AssetCategory{Name: payload.Name, Description: payload.Description}
	if err := db.Create(&cat).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create asset category: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cat)
}

func ListAssetCategoriesHandler(c *gin.Context) {
	db := database.GetDB()
	var categories []models.AssetCategory
	if err := db.Order("name asc").Find(&categories).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list asset categories: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, categories)
}

// DeleteAssetCategoryHandler removes a category unless assets still use it.
func DeleteAssetCategoryHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	catID, err := uuid.Parse(c.Param("categoryId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID format"})
		return
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.Asset{}).Where("asset_category_id = ?", catID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check category usage: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Asset category is still referenced by assets"})
		return
	}

	res := db.Where("id = ?", catID).Delete(&models.AssetCategory{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete asset category: " + res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset category not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Asset category deleted successfully"})
}

func CreateAssetHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot manage assets of another work unit"})
		return
	}

	var payload AssetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.AssetCategory{}).Where("id = ?", payload.AssetCategoryID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check asset category: " + err.Error()})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset category not found"})
		return
	}

	asset := models.Asset{
		WorkUnitID:      unitID,
		AssetCategoryID: payload.AssetCategoryID,
		Name:            payload.Name,
		Description:     payload.Description,
	}
	if err := db.Create(&asset).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create asset: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, asset)
}

func ListAssetsHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	page, pageSize := GetPaginationParams(c)

	query := db.Model(&models.Asset{}).Where("work_unit_id = ?", unitID)
	if categoryID := c.Query("category_id"); categoryID != "" {
		query = query.Where("asset_category_id = ?", categoryID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count assets: " + err.Error()})
		return
	}

	var assets []models.Asset
	if err := query.Scopes(PaginateScope(page, pageSize)).Order("name asc").Find(&assets).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list assets: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(assets, total, page, pageSize))
}

func UpdateAssetHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot manage assets of another work unit"})
		return
	}
	assetID, err := uuid.Parse(c.Param("assetId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID format"})
		return
	}

	var payload AssetPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()
	var asset models.Asset
	if err := db.Where("id = ? AND work_unit_id = ?", assetID, unitID).First(&asset).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found in this work unit"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch asset: " + err.Error()})
		return
	}

	var count int64
	if err := db.Model(&models.AssetCategory{}).Where("id = ?", payload.AssetCategoryID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check asset category: " + err.Error()})
		return
	}
	if count == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset category not found"})
		return
	}

	asset.AssetCategoryID = payload.AssetCategoryID
	asset.Name = payload.Name
	asset.Description = payload.Description
	if err := db.Save(&asset).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update asset: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, asset)
}

// DeleteAssetHandler removes an asset unless a risk item still references it.
func DeleteAssetHandler(c *gin.Context) {
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
		c.JSON(http.StatusForbidden, gin.H{"error": "You cannot manage assets of another work unit"})
		return
	}
	assetID, err := uuid.Parse(c.Param("assetId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid asset ID format"})
		return
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.RiskAssessmentItem{}).Where("asset_id = ?", assetID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check asset usage: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Asset is still referenced by risk items"})
		return
	}

	res := db.Where("id = ? AND work_unit_id = ?", assetID, unitID).Delete(&models.Asset{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete asset: " + res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Asset not found in this work unit"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted successfully"})
}
