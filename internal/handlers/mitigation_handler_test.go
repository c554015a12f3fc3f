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

var testItemID = uuid.New()
var testMitigationID = uuid.New()

func itemRow(mitigationSeq int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "risk_worksheet_id", "risk_category_id", "code", "title", "mitigation_seq"}).
		AddRow(testItemID, testWorksheetID, testCategoryID, "R001", "Server room flooding", mitigationSeq)
}

func mitigationRow(status models.MitigationStatus, validated bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "risk_assessment_item_id", "code", "action_plan", "status", "priority", "is_validated"}).
		AddRow(testMitigationID, testItemID, "M001", "Install water detection sensors", status, "HIGH", validated)
}

func mitigationPath(suffix string) string {
	return worksheetPath("/items/" + testItemID.String() + "/mitigations" + suffix)
}

func TestCreateMitigationHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.POST("/unit-kerja/:unitId/risk-worksheets/:worksheetId/items/:itemId/mitigations", CreateMitigationHandler)

	t.Run("Codes continue past deleted mitigations", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
			WillReturnRows(itemRow(2))

		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
			WillReturnRows(itemRow(2))
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_assessment_items" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec(escapeSQL(`INSERT INTO "risk_mitigations"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		body, _ := json.Marshal(MitigationPayload{ActionPlan: "Install water detection sensors"})
		req, _ := http.NewRequest(http.MethodPost, mitigationPath(""), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var m models.RiskMitigation
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
		assert.Equal(t, "M003", m.Code)
		assert.Equal(t, models.MitigationPlanned, m.Status)
		assert.Equal(t, models.PriorityMedium, m.Priority)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Non-draft worksheet blocks mitigation creation", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetApproved, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
			WillReturnRows(itemRow(0))

		body, _ := json.Marshal(MitigationPayload{ActionPlan: "Install water detection sensors"})
		req, _ := http.NewRequest(http.MethodPost, mitigationPath(""), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestMitigationValidationWorkflow(t *testing.T) {
	gin.SetMode(gin.TestMode)
	reviewerRouter := getRouterWithAuthenticatedContext(testReviewerID, testUnitID, models.RoleRiskCommittee)
	reviewerRouter.PATCH("/unit-kerja/:unitId/risk-worksheets/:worksheetId/items/:itemId/mitigations/:mitigationId/validate", ValidateMitigationHandler)
	reviewerRouter.PATCH("/unit-kerja/:unitId/risk-worksheets/:worksheetId/items/:itemId/mitigations/:mitigationId/reject", RejectMitigationHandler)

	t.Run("Only completed mitigations can be validated", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetApproved, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
			WillReturnRows(itemRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_mitigations"`)).
			WillReturnRows(mitigationRow(models.MitigationPlanned, false))

		req, _ := http.NewRequest(http.MethodPatch, mitigationPath("/"+testMitigationID.String()+"/validate"), nil)
		rr := httptest.NewRecorder()
		reviewerRouter.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Validation freezes the mitigation", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetApproved, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
			WillReturnRows(itemRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_mitigations"`)).
			WillReturnRows(mitigationRow(models.MitigationCompleted, false))
		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_mitigations" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		req, _ := http.NewRequest(http.MethodPatch, mitigationPath("/"+testMitigationID.String()+"/validate"), nil)
		rr := httptest.NewRecorder()
		reviewerRouter.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var m models.RiskMitigation
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &m))
		assert.True(t, m.IsValidated)
		assert.Equal(t, testReviewerID, *m.ValidatedBy)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Validated mitigation cannot be rejected", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetApproved, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
			WillReturnRows(itemRow(1))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_mitigations"`)).
			WillReturnRows(mitigationRow(models.MitigationCompleted, true))

		body, _ := json.Marshal(ValidationPayload{Notes: "Evidence does not show completion."})
		req, _ := http.NewRequest(http.MethodPatch, mitigationPath("/"+testMitigationID.String()+"/reject"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		reviewerRouter.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestUpdateValidatedMitigationForbidden(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.PUT("/unit-kerja/:unitId/risk-worksheets/:worksheetId/items/:itemId/mitigations/:mitigationId", UpdateMitigationHandler)

	sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
		WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
	sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessment_items"`)).
		WillReturnRows(itemRow(1))
	sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_mitigations"`)).
		WillReturnRows(mitigationRow(models.MitigationCompleted, true))

	body, _ := json.Marshal(MitigationPayload{ActionPlan: "Change the plan"})
	req, _ := http.NewRequest(http.MethodPut, mitigationPath("/"+testMitigationID.String()), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.NoError(t, sqlMock.ExpectationsWereMet())
}
