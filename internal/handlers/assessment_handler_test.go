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

var testAssessmentID = uuid.New()

func assessmentRow(status models.AssessmentStatus, ownerID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "risk_worksheet_id", "code", "name", "owner_id", "status"}).
		AddRow(testAssessmentID, testWorksheetID, "A001", "Quarterly Review", ownerID, status)
}

func assessmentPath(suffix string) string {
	return worksheetPath("/assessments/" + testAssessmentID.String() + suffix)
}

func TestCreateAssessmentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.POST("/unit-kerja/:unitId/risk-worksheets/:worksheetId/assessments", CreateAssessmentHandler)

	t.Run("Assigns the next sequential code", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectBegin()
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(sqlmock.NewRows([]string{"id", "assessment_seq"}).AddRow(testWorksheetID, 1))
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_worksheets" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectExec(escapeSQL(`INSERT INTO "risk_assessments"`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		body, _ := json.Marshal(AssessmentPayload{Name: "Quarterly Review"})
		req, _ := http.NewRequest(http.MethodPost, worksheetPath("/assessments"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var a models.RiskAssessment
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
		assert.Equal(t, "A002", a.Code)
		assert.Equal(t, models.AssessmentDraft, a.Status)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestSubmitAssessmentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.PATCH("/unit-kerja/:unitId/risk-worksheets/:worksheetId/assessments/:assessmentId/submit", SubmitAssessmentHandler)

	t.Run("Submitting an assessment with no items is refused", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(assessmentRow(models.AssessmentDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_assessment_items"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

		req, _ := http.NewRequest(http.MethodPatch, assessmentPath("/submit"), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "no risk items")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Owner submits an assessment with items", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(assessmentRow(models.AssessmentDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT count(*) FROM "risk_assessment_items"`)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_assessments" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		req, _ := http.NewRequest(http.MethodPatch, assessmentPath("/submit"), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var a models.RiskAssessment
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
		assert.Equal(t, models.AssessmentSubmitted, a.Status)
		assert.NotNil(t, a.SubmittedAt)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestArchiveAssessmentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testReviewerID, testUnitID, models.RoleRiskCommittee)
	router.DELETE("/unit-kerja/:unitId/risk-worksheets/:worksheetId/assessments/:assessmentId", ArchiveAssessmentHandler)

	t.Run("Archive is owner-only, committee role does not override", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(assessmentRow(models.AssessmentApproved, testUserID))

		req, _ := http.NewRequest(http.MethodDelete, assessmentPath(""), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestRejectAssessmentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testReviewerID, testUnitID, models.RoleRiskCommittee)
	router.PATCH("/unit-kerja/:unitId/risk-worksheets/:worksheetId/assessments/:assessmentId/reject", RejectAssessmentHandler)

	t.Run("Rejection parks the assessment in REJECTED", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(assessmentRow(models.AssessmentInReview, testUserID))
		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_assessments" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		body, _ := json.Marshal(ReviewPayload{Notes: "Assessment scope is too narrow for this quarter."})
		req, _ := http.NewRequest(http.MethodPatch, assessmentPath("/reject"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var a models.RiskAssessment
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
		assert.Equal(t, models.AssessmentRejected, a.Status, "rejection must not silently return to DRAFT")
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Rejection without a reason is refused", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(assessmentRow(models.AssessmentInReview, testUserID))

		body, _ := json.Marshal(ReviewPayload{Notes: ""})
		req, _ := http.NewRequest(http.MethodPatch, assessmentPath("/reject"), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}

func TestReviseAssessmentHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := getRouterWithAuthenticatedContext(testUserID, testUnitID, models.RoleRiskOwner)
	router.PATCH("/unit-kerja/:unitId/risk-worksheets/:worksheetId/assessments/:assessmentId/revise", ReviseAssessmentHandler)

	t.Run("Owner pulls a rejected assessment back to draft", func(t *testing.T) {
		row := sqlmock.NewRows([]string{"id", "risk_worksheet_id", "code", "name", "owner_id", "status", "submitted_by"}).
			AddRow(testAssessmentID, testWorksheetID, "A001", "Quarterly Review", testUserID, models.AssessmentRejected, testUserID)

		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(row)
		sqlMock.ExpectBegin()
		sqlMock.ExpectExec(escapeSQL(`UPDATE "risk_assessments" SET`)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		sqlMock.ExpectCommit()

		req, _ := http.NewRequest(http.MethodPatch, assessmentPath("/revise"), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var a models.RiskAssessment
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &a))
		assert.Equal(t, models.AssessmentDraft, a.Status)
		assert.Nil(t, a.SubmittedAt)
		assert.Nil(t, a.SubmittedBy)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Revise is owner-only", func(t *testing.T) {
		otherOwner := uuid.New()
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_worksheets"`)).
			WillReturnRows(worksheetRow(models.WorksheetDraft, testUserID))
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "risk_assessments"`)).
			WillReturnRows(assessmentRow(models.AssessmentRejected, otherOwner))

		req, _ := http.NewRequest(http.MethodPatch, assessmentPath("/revise"), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}
