package handlers

import (
	"errors"
	"net/http"

	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type WorkUnitPayload struct {
	Name        string `json:"name" binding:"required,min=2,max=255"`
	Code        string `json:"code" binding:"required,min=2,max=50"`
	Description string `json:"description"`
}

func CreateWorkUnitHandler(c *gin.Context) {
	actor, ok := requireReviewer(c)
	if !ok {
		return
	}
	if !actor.HasRole(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only an admin can manage work units"})
		return
	}

	var payload WorkUnitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.WorkUnit{}).Where("code = ?", payload.Code).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check unit code: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "A work unit with this code already exists"})
		return
	}

	unit := models.WorkUnit{Name: payload.Name, Code: payload.Code, Description: payload.Description}
	if err := db.Create(&unit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create work unit: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, unit)
}

func ListWorkUnitsHandler(c *gin.Context) {
	db := database.GetDB()
	page, pageSize := GetPaginationParams(c)

	var total int64
	if err := db.Model(&models.WorkUnit{}).Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to count work units: " + err.Error()})
		return
	}

	var units []models.WorkUnit
	if err := db.Scopes(PaginateScope(page, pageSize)).Order("code asc").Find(&units).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list work units: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, NewPaginatedResponse(units, total, page, pageSize))
}

func GetWorkUnitHandler(c *gin.Context) {
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}
	db := database.GetDB()
	var unit models.WorkUnit
	if err := db.Where("id = ?", unitID).First(&unit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Work unit not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch work unit: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, unit)
}

func UpdateWorkUnitHandler(c *gin.Context) {
	actor, ok := requireReviewer(c)
	if !ok {
		return
	}
	if !actor.HasRole(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only an admin can manage work units"})
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	var payload WorkUnitPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	db := database.GetDB()
	var unit models.WorkUnit
	if err := db.Where("id = ?", unitID).First(&unit).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Work unit not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch work unit: " + err.Error()})
		return
	}

	if payload.Code != unit.Code {
		var count int64
		if err := db.Model(&models.WorkUnit{}).Where("code = ? AND id <> ?", payload.Code, unit.ID).Count(&count).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check unit code: " + err.Error()})
			return
		}
		if count > 0 {
			c.JSON(http.StatusConflict, gin.H{"error": "A work unit with this code already exists"})
			return
		}
	}

	unit.Name = payload.Name
	unit.Code = payload.Code
	unit.Description = payload.Description
	if err := db.Save(&unit).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update work unit: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, unit)
}

// DeleteWorkUnitHandler refuses to remove a unit that still owns worksheets
// or assets.
func DeleteWorkUnitHandler(c *gin.Context) {
	actor, ok := requireReviewer(c)
	if !ok {
		return
	}
	if !actor.HasRole(models.RoleAdmin) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Only an admin can manage work units"})
		return
	}
	unitID, ok := unitFromPath(c)
	if !ok {
		return
	}

	db := database.GetDB()
	var count int64
	if err := db.Model(&models.RiskWorksheet{}).Where("work_unit_id = ?", unitID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check unit worksheets: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Work unit still has worksheets and cannot be deleted"})
		return
	}
	if err := db.Model(&models.Asset{}).Where("work_unit_id = ?", unitID).Count(&count).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check unit assets: " + err.Error()})
		return
	}
	if count > 0 {
		c.JSON(http.StatusConflict, gin.H{"error": "Work unit still has assets and cannot be deleted"})
		return
	}

	res := db.Where("id = ?", unitID).Delete(&models.WorkUnit{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete work unit: " + res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Work unit not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Work unit deleted successfully"})
}
