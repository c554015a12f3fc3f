package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"satriarisk/backend/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func contextRow(status models.ContextStatus, matrixSize int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "code", "matrix_size", "risk_appetite_level", "status"}).
		AddRow(testContextID, "Annual Context", "CTX-2026", matrixSize, "MEDIUM", status)
}

func TestCreateContextHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Non-committee caller is rejected", func(t *testing.T) {
		router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
		router.POST("/konteks", CreateContextHandler)

		payload := ContextPayload{
			Name:        "Annual Context",
			Code:        "CTX-2026",
			PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			MatrixSize:  5,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, "/konteks", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("Duplicate code is a conflict", func(t *testing.T) {
		router := getRouterWithAuthenticatedContext(testReviewerID, testUnitID, models.RoleRiskCommittee)
		router.POST("/konteks", CreateContextHandler)

		payload := ContextPayload{
			Name:        "Annual Context",
			Code:        "CTX-2026",
			PeriodStart: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			MatrixSize:  5,
		}
		body, _ := json.Marshal(payload)

		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_contexts"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

		req, _ := http.NewRequest(http.MethodPost, "/konteks", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Period end before start is rejected", func(t *testing.T) {
		router := getRouterWithAuthenticatedContext(testReviewerID, testUnitID, models.RoleRiskCommittee)
		router.POST("/konteks", CreateContextHandler)

		payload := ContextPayload{
			Name:        "Annual Context",
			Code:        "CTX-2026",
			PeriodStart: time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC),
			PeriodEnd:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
			MatrixSize:  5,
		}
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest(http.MethodPost, "/konteks", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestActivateContextHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testReviewerID, testUnitID, models.RoleRiskCommittee)
	router.PATCH("/konteks/:konteksId/activate", ActivateContextHandler)

	t.Run("Incomplete configuration lists every failure", func(t *testing.T) {
		categoryID := testContextID

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(contextRow(models.ContextInactive, 2))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "risk_context_id", "name"}).
				AddRow(categoryID, testContextID, "Operational"))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "likelihood_scales"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "impact_scales"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_matrix_cells"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

		req, _ := http.NewRequest(http.MethodPatch, "/konteks/"+testContextID.String()+"/activate", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)

		var resp struct {
			Error  string   `json:"error"`
			Errors []string `json:"errors"`
		}
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Len(t, resp.Errors, 2, "likelihood shortfall and cell shortfall must both be reported")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Complete configuration activates in one transaction", func(t *testing.T) {
		categoryID := testContextID

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(contextRow(models.ContextInactive, 2))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_categories"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "risk_context_id", "name"}).
				AddRow(categoryID, testContextID, "Operational"))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "likelihood_scales"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "impact_scales"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_matrix_cells"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_contexts" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_contexts" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		req, _ := http.NewRequest(http.MethodPatch, "/konteks/"+testContextID.String()+"/activate", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var ctx models.RiskContext
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &ctx))
		assert.Equal(t, models.ContextActive, ctx.Status)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Re-activating an active context is a conflict", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(contextRow(models.ContextActive, 2))

		req, _ := http.NewRequest(http.MethodPatch, "/konteks/"+testContextID.String()+"/activate", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Archived context cannot be activated", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_contexts"`)).
			WillReturnRows(contextRow(models.ContextArchived, 2))

		req, _ := http.NewRequest(http.MethodPatch, "/konteks/"+testContextID.String()+"/activate", nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}
