package handlers

import (
	"errors"
	"net/http"

	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HeatmapCell is one populated cell of the dashboard heatmap.
type HeatmapCell struct {
	LikelihoodLevel int              `json:"likelihood_level"`
	ImpactLevel     int              `json:"impact_level"`
	RiskLevel       models.RiskLevel `json:"risk_level"`
	ItemCount       int64            `json:"item_count"`
}

// TreatmentSummaryRow counts items per treatment option and residual level.
type TreatmentSummaryRow struct {
	TreatmentOption models.TreatmentOption `json:"treatment_option"`
	ResidualLevel   models.RiskLevel       `json:"residual_level"`
	ItemCount       int64                  `json:"item_count"`
}

// activeContextOr400 loads the single ACTIVE context; dashboards only make
// sense against it.
func activeContextOr400(c *gin.Context, db *gorm.DB) *models.RiskContext {
	var ctx models.RiskContext
	if err := db.Where("status = ?", models.ContextActive).First(&ctx).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "No active risk context"})
			return nil
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch active context: " + err.Error()})
		return nil
	}
	return &ctx
}

// RiskMatrixDashboardHandler aggregates the active context's items into the
// residual heatmap. Cells without items are still reported with a zero
// count so the client can paint the full grid.
func RiskMatrixDashboardHandler(c *gin.Context) {
	db := database.GetDB()
	ctx := activeContextOr400(c, db)
	if ctx == nil {
		return
	}

	query := db.Model(&models.RiskMatrixCell{}).
		Select(`risk_matrix_cells.likelihood_level,
			risk_matrix_cells.impact_level,
			risk_matrix_cells.risk_level,
			count(risk_assessment_items.id) as item_count`).
		Joins(`LEFT JOIN risk_worksheets ON risk_worksheets.risk_context_id = risk_matrix_cells.risk_context_id
			AND risk_worksheets.status <> 'ARCHIVED'`).
		Joins(`LEFT JOIN risk_assessment_items ON risk_assessment_items.risk_worksheet_id = risk_worksheets.id
			AND risk_assessment_items.residual_likelihood = risk_matrix_cells.likelihood_level
			AND risk_assessment_items.residual_impact = risk_matrix_cells.impact_level`).
		Where("risk_matrix_cells.risk_context_id = ?", ctx.ID).
		Group("risk_matrix_cells.likelihood_level, risk_matrix_cells.impact_level, risk_matrix_cells.risk_level").
		Order("risk_matrix_cells.likelihood_level asc, risk_matrix_cells.impact_level asc")

	if unitID := c.Query("unit_id"); unitID != "" {
		query = query.Where("risk_worksheets.work_unit_id = ?", unitID)
	}

	var cells []HeatmapCell
	if err := query.Scan(&cells).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build risk matrix dashboard: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"context_id":  ctx.ID,
		"matrix_size": ctx.MatrixSize,
		"cells":       cells,
	})
}

// TreatmentSummaryHandler breaks the active context's items down by chosen
// treatment option and residual risk level.
func TreatmentSummaryHandler(c *gin.Context) {
	db := database.GetDB()
	ctx := activeContextOr400(c, db)
	if ctx == nil {
		return
	}

	query := db.Model(&models.RiskAssessmentItem{}).
		Select(`risk_assessment_items.treatment_option,
			risk_assessment_items.residual_risk_level as residual_level,
			count(risk_assessment_items.id) as item_count`).
		Joins("JOIN risk_worksheets ON risk_worksheets.id = risk_assessment_items.risk_worksheet_id").
		Where("risk_worksheets.risk_context_id = ?", ctx.ID).
		Where("risk_worksheets.status <> ?", models.WorksheetArchived).
		Group("risk_assessment_items.treatment_option, risk_assessment_items.residual_risk_level").
		Order("risk_assessment_items.treatment_option asc")

	if unitID := c.Query("unit_id"); unitID != "" {
		query = query.Where("risk_worksheets.work_unit_id = ?", unitID)
	}

	var rows []TreatmentSummaryRow
	if err := query.Scan(&rows).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build treatment summary: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"context_id":        ctx.ID,
		"risk_appetite":     ctx.RiskAppetiteLevel,
		"treatment_summary": rows,
	})
}
