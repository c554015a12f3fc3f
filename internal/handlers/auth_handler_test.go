package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func TestLoginHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/auth/login", LoginHandler)

	hashed, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.DefaultCost)
	assert.NoError(t, err)

	userRows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id", "work_unit_id", "name", "email", "password_hash", "roles", "is_active"}).
			AddRow(testUserID, testUnitID, "Test User", "user@satriarisk.local", string(hashed), "risk_owner", true)
	}

	t.Run("Valid credentials return a token", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "users"`)).
			WillReturnRows(userRows())

		body, _ := json.Marshal(LoginPayload{Email: "user@satriarisk.local", Password: "correct-password"})
		req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var resp LoginResponse
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.NotEmpty(t, resp.Token)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Wrong password is unauthorized", func(t *testing.T) {
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "users"`)).
			WillReturnRows(userRows())

		body, _ := json.Marshal(LoginPayload{Email: "user@satriarisk.local", Password: "wrong-password"})
		req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})

	t.Run("Inactive account is unauthorized", func(t *testing.T) {
		inactive := sqlmock.NewRows([]string{"id", "work_unit_id", "email", "password_hash", "roles", "is_active"}).
			AddRow(uuid.New(), testUnitID, "gone@satriarisk.local", string(hashed), "risk_owner", false)
		sqlMock.ExpectQuery(escapeSQL(`SELECT * FROM "users"`)).
			WillReturnRows(inactive)

		body, _ := json.Marshal(LoginPayload{Email: "gone@satriarisk.local", Password: "correct-password"})
		req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.NoError(t, sqlMock.ExpectationsWereMet())
	})
}
