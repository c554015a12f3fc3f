package router

import (
	"net/http"
	"time"

	"satriarisk/backend/internal/auth"
	"satriarisk/backend/internal/database"
	"satriarisk/backend/internal/handlers"
	srmiddleware "satriarisk/backend/internal/middleware"
	srlog "satriarisk/backend/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter wires the full HTTP surface onto a gin engine.
func SetupRouter(log *zap.Logger) *gin.Engine {
	router := gin.New()

	router.Use(srmiddleware.Metrics())
	router.Use(srmiddleware.GinZap(log, time.RFC3339, true))
	router.Use(srmiddleware.GinRecovery(log, time.RFC3339, true, true))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", healthCheckHandler)

	authRoutes := router.Group("/auth")
	{
		authRoutes.POST("/login", handlers.LoginHandler)
	}

	setupV1Routes(router)

	return router
}

func healthCheckHandler(c *gin.Context) {
	sqlDB, err := database.DB.DB()
	if err != nil {
		srlog.L.Error("Failed to get DB instance for health check", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database instance error"})
		return
	}
	if err := sqlDB.Ping(); err != nil {
		srlog.L.Error("Database ping failed during health check", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": "database ping failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "database": "connected"})
}

func setupV1Routes(r *gin.Engine) {
	v1 := r.Group("/api/v1")
	v1.Use(auth.AuthMiddleware())

	konteks := v1.Group("/konteks")
	{
		konteks.POST("", handlers.CreateContextHandler)
		konteks.GET("", handlers.ListContextsHandler)
		konteks.GET("/:konteksId", handlers.GetContextHandler)
		konteks.PUT("/:konteksId", handlers.UpdateContextHandler)
		konteks.DELETE("/:konteksId", handlers.ArchiveContextHandler)
		konteks.PATCH("/:konteksId/activate", handlers.ActivateContextHandler)
		konteks.PATCH("/:konteksId/deactivate", handlers.DeactivateContextHandler)

		categories := konteks.Group("/:konteksId/categories")
		{
			categories.POST("", handlers.CreateCategoryHandler)
			categories.GET("", handlers.ListCategoriesHandler)
			categories.PUT("/:categoryId", handlers.UpdateCategoryHandler)
			categories.DELETE("/:categoryId", handlers.DeleteCategoryHandler)

			categories.POST("/:categoryId/likelihood-scales", handlers.CreateLikelihoodScaleHandler)
			categories.DELETE("/:categoryId/likelihood-scales/:scaleId", handlers.DeleteLikelihoodScaleHandler)
			categories.POST("/:categoryId/impact-scales", handlers.CreateImpactScaleHandler)
			categories.DELETE("/:categoryId/impact-scales/:scaleId", handlers.DeleteImpactScaleHandler)
		}

		matrix := konteks.Group("/:konteksId/matrix")
		{
			matrix.GET("", handlers.ListMatrixCellsHandler)
			matrix.POST("", handlers.CreateMatrixCellsHandler)
			matrix.DELETE("/:cellId", handlers.DeleteMatrixCellHandler)
		}
	}

	units := v1.Group("/unit-kerja")
	{
		units.POST("", handlers.CreateWorkUnitHandler)
		units.GET("", handlers.ListWorkUnitsHandler)
		units.GET("/:unitId", handlers.GetWorkUnitHandler)
		units.PUT("/:unitId", handlers.UpdateWorkUnitHandler)
		units.DELETE("/:unitId", handlers.DeleteWorkUnitHandler)

		assets := units.Group("/:unitId/assets")
		{
			assets.POST("", handlers.CreateAssetHandler)
			assets.GET("", handlers.ListAssetsHandler)
			assets.PUT("/:assetId", handlers.UpdateAssetHandler)
			assets.DELETE("/:assetId", handlers.DeleteAssetHandler)
		}

		worksheets := units.Group("/:unitId/risk-worksheets")
		{
			worksheets.POST("", handlers.CreateWorksheetHandler)
			worksheets.GET("", handlers.ListWorksheetsHandler)
			worksheets.GET("/:worksheetId", handlers.GetWorksheetHandler)
			worksheets.PUT("/:worksheetId", handlers.UpdateWorksheetHandler)
			worksheets.DELETE("/:worksheetId", handlers.ArchiveWorksheetHandler)
			worksheets.PATCH("/:worksheetId/submit", handlers.SubmitWorksheetHandler)
			worksheets.PATCH("/:worksheetId/approve", handlers.ApproveWorksheetHandler)
			worksheets.PATCH("/:worksheetId/reject", handlers.RejectWorksheetHandler)

			assessments := worksheets.Group("/:worksheetId/assessments")
			{
				assessments.POST("", handlers.CreateAssessmentHandler)
				assessments.GET("", handlers.ListAssessmentsHandler)
				assessments.GET("/:assessmentId", handlers.GetAssessmentHandler)
				assessments.PUT("/:assessmentId", handlers.UpdateAssessmentHandler)
				assessments.DELETE("/:assessmentId", handlers.ArchiveAssessmentHandler)
				assessments.PATCH("/:assessmentId/submit", handlers.SubmitAssessmentHandler)
				assessments.PATCH("/:assessmentId/start-review", handlers.StartAssessmentReviewHandler)
				assessments.PATCH("/:assessmentId/approve", handlers.ApproveAssessmentHandler)
				assessments.PATCH("/:assessmentId/reject", handlers.RejectAssessmentHandler)
				assessments.PATCH("/:assessmentId/revise", handlers.ReviseAssessmentHandler)
			}

			items := worksheets.Group("/:worksheetId/items")
			{
				items.POST("", handlers.CreateItemHandler)
				items.GET("", handlers.ListItemsHandler)
				items.GET("/:itemId", handlers.GetItemHandler)
				items.PUT("/:itemId", handlers.UpdateItemHandler)
				items.DELETE("/:itemId", handlers.DeleteItemHandler)

				mitigations := items.Group("/:itemId/mitigations")
				{
					mitigations.POST("", handlers.CreateMitigationHandler)
					mitigations.GET("", handlers.ListMitigationsHandler)
					mitigations.GET("/:mitigationId", handlers.GetMitigationHandler)
					mitigations.PUT("/:mitigationId", handlers.UpdateMitigationHandler)
					mitigations.DELETE("/:mitigationId", handlers.DeleteMitigationHandler)
					mitigations.PATCH("/:mitigationId/validate", handlers.ValidateMitigationHandler)
					mitigations.PATCH("/:mitigationId/reject", handlers.RejectMitigationHandler)
					mitigations.POST("/:mitigationId/evidence", handlers.UploadEvidenceHandler)
					mitigations.GET("/:mitigationId/evidence/signed-url", handlers.GetEvidenceURLHandler)
				}
			}
		}
	}

	v1.GET("/mitigations/pending-validation", handlers.ListPendingValidationHandler)

	assetCategories := v1.Group("/asset-categories")
	{
		assetCategories.POST("", handlers.CreateAssetCategoryHandler)
		assetCategories.GET("", handlers.ListAssetCategoriesHandler)
		assetCategories.DELETE("/:categoryId", handlers.DeleteAssetCategoryHandler)
	}

	dashboard := v1.Group("/dashboard")
	{
		dashboard.GET("/risk-matrix", handlers.RiskMatrixDashboardHandler)
		dashboard.GET("/treatment-summary", handlers.TreatmentSummaryHandler)
	}
}
