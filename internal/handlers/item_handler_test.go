package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"satriarisk/backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

var testCategoryID = uuid.New()

func matrixCellRow(level models.RiskLevel) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "risk_context_id", "likelihood_level", "impact_level", "risk_level"}).
		AddRow(uuid.New(), testContextID, 2, 2, level)
}

func TestCreateItemHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.POST("/unit-kerja/:unitId/risk-worksheets/:worksheetId/items", CreateItemHandler)

	basePayload := func() ItemPayload {
		return ItemPayload{
			RiskCategoryID:     testCategoryID,
			Title:              "Server room flooding",
			InherentLikelihood: 2,
			InherentImpact:     2,
			ResidualLikelihood: 2,
			ResidualImpact:     2,
		}
	}

	t.Run("Treatment outside the appetite is rejected", func(t *testing.T) {
		payload := basePayload()
		payload.TreatmentOption = models.TreatmentAccept
		body, _ := json.Marshal(payload)

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		// context with appetite LOW
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "matrix_size", "risk_appetite_level", "status"}).
				AddRow(testContextID, 2, "LOW", models.ContextActive))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_matrix_cells"`)).
			WillReturnRows(matrixCellRow(models.RiskLevelCritical))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_matrix_cells"`)).
			WillReturnRows(matrixCellRow(models.RiskLevelCritical))

		req, _ := http.NewRequest(http.MethodPost, worksheetPath("/items"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "CRITICAL")
		assert.Contains(t, rr.Body.String(), "LOW")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Uncovered matrix combination fails the request", func(t *testing.T) {
		payload := basePayload()
		body, _ := json.Marshal(payload)

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "matrix_size", "risk_appetite_level", "status"}).
				AddRow(testContextID, 2, "MEDIUM", models.ContextActive))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_matrix_cells"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		req, _ := http.NewRequest(http.MethodPost, worksheetPath("/items"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "no cell")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Category from another context is not found", func(t *testing.T) {
		payload := basePayload()
		body, _ := json.Marshal(payload)

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "matrix_size", "risk_appetite_level", "status"}).
				AddRow(testContextID, 2, "MEDIUM", models.ContextActive))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		req, _ := http.NewRequest(http.MethodPost, worksheetPath("/items"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Scores outside the matrix size are rejected", func(t *testing.T) {
		payload := basePayload()
		payload.InherentLikelihood = 3
		body, _ := json.Marshal(payload)

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "matrix_size", "risk_appetite_level", "status"}).
				AddRow(testContextID, 2, "MEDIUM", models.ContextActive))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		req, _ := http.NewRequest(http.MethodPost, worksheetPath("/items"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "matrix size")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Successful create assigns the next sequential code", func(t *testing.T) {
		payload := basePayload()
		payload.TreatmentOption = models.TreatmentMitigate
		body, _ := json.Marshal(payload)

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "matrix_size", "risk_appetite_level", "status"}).
				AddRow(testContextID, 2, "MEDIUM", models.ContextActive))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_matrix_cells"`)).
			WillReturnRows(matrixCellRow(models.RiskLevelHigh))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_matrix_cells"`)).
			WillReturnRows(matrixCellRow(models.RiskLevelMedium))

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "item_seq"}).AddRow(testWorksheetID, 4))
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_worksheets" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec(escapeSQL(`INSERT INTO "risk_assessment_items"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		req, _ := http.NewRequest(http.MethodPost, worksheetPath("/items"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var item models.RiskAssessmentItem
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &item))
		assert.Equal(t, "R005", item.Code)
		assert.Equal(t, models.RiskLevelHigh, item.InherentRiskLevel)
		assert.Equal(t, models.RiskLevelMedium, item.ResidualRiskLevel)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestUpdateItemForbiddenOutsideDraft(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.PUT("/unit-kerja/:unitId/risk-worksheets/:worksheetId/items/:itemId", UpdateItemHandler)

	sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
		WillReturnRows(worksheetRow(models.WorksheetSubmitted, testUserID))

	body, _ := json.Marshal(ItemPayload{
		RiskCategoryID:     testCategoryID,
		Title:              "Server room flooding",
		InherentLikelihood: 1,
		InherentImpact:     1,
		ResidualLikelihood: 1,
		ResidualImpact:     1,
	})
	req, _ := http.NewRequest(http.MethodPut, worksheetPath("/items/"+uuid.NewString()), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
