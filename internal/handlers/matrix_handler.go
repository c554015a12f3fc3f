package handlers

import (
	"fmt"
	"net/http"

	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type MatrixCellPayload struct {
	LikelihoodLevel int              `json:"likelihood_level" binding:"required,min=1"`
	ImpactLevel     int              `json:"impact_level" binding:"required,min=1"`
	RiskLevel       models.RiskLevel `json:"risk_level" binding:"required,oneof=LOW MEDIUM HIGH CRITICAL"`
}

type BulkMatrixPayload struct {
	Cells []MatrixCellPayload `json:"cells" binding:"required,min=1,dive"`
}

// ListMatrixCellsHandler returns the configured cells of a context, ordered
// as a grid.
func ListMatrixCellsHandler(c *gin.Context) {
	ctxID, err := uuid.Parse(c.Param("konteksId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid context ID format"})
		return
	}

	db := database.GetDB()
	var cells []models.RiskMatrixCell
	err = db.Where("risk_context_id = ?", ctxID).
		Order("likelihood_level asc, impact_level asc").
		Find(&cells).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list matrix cells: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, cells)
}

// CreateMatrixCellsHandler inserts a batch of cells. The whole batch is
// validated first: out-of-range levels, duplicate pairs inside the request
// and pairs that already exist in the context all fail the request before
// anything is written.
func CreateMatrixCellsHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}

	var payload BulkMatrixPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload: " + err.Error()})
		return
	}

	var problems []string
	seen := make(map[[2]int]bool, len(payload.Cells))
	for i, cell := range payload.Cells {
		if cell.LikelihoodLevel > ctx.MatrixSize || cell.ImpactLevel > ctx.MatrixSize {
			problems = append(problems, fmt.Sprintf("cell %d: levels (%d,%d) exceed the matrix size %d",
				i, cell.LikelihoodLevel, cell.ImpactLevel, ctx.MatrixSize))
		}
		pair := [2]int{cell.LikelihoodLevel, cell.ImpactLevel}
		if seen[pair] {
			problems = append(problems, fmt.Sprintf("cell %d: pair (%d,%d) appears more than once in the request",
				i, cell.LikelihoodLevel, cell.ImpactLevel))
		}
		seen[pair] = true
	}

	var existing []models.RiskMatrixCell
	if err := db.Where("risk_context_id = ?", ctx.ID).Find(&existing).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch existing cells: " + err.Error()})
		return
	}
	for _, cell := range existing {
		pair := [2]int{cell.LikelihoodLevel, cell.ImpactLevel}
		if seen[pair] {
			problems = append(problems, fmt.Sprintf("pair (%d,%d) is already configured in this context",
				cell.LikelihoodLevel, cell.ImpactLevel))
		}
	}

	if len(problems) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "Matrix cell batch is invalid",
			"errors": problems,
		})
		return
	}

	cells := make([]models.RiskMatrixCell, 0, len(payload.Cells))
	for _, p := range payload.Cells {
		cells = append(cells, models.RiskMatrixCell{
			RiskContextID:   ctx.ID,
			LikelihoodLevel: p.LikelihoodLevel,
			ImpactLevel:     p.ImpactLevel,
			RiskLevel:       p.RiskLevel,
		})
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&cells).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create matrix cells: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, cells)
}

// DeleteMatrixCellHandler removes one cell while the context is configurable.
func DeleteMatrixCellHandler(c *gin.Context) {
	if _, ok := requireReviewer(c); !ok {
		return
	}
	db := database.GetDB()
	ctx := configurableContext(c, db)
	if ctx == nil {
		return
	}

	cellID, err := uuid.Parse(c.Param("cellId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cell ID format"})
		return
	}

	res := db.Where("id = ? AND risk_context_id = ?", cellID, ctx.ID).Delete(&models.RiskMatrixCell{})
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete matrix cell: " + res.Error.Error()})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Matrix cell not found in this context"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Matrix cell deleted successfully"})
}
