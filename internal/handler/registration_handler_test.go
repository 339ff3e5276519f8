package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-adm/university-api/internal/middleware"
	"github.com/campus-adm/university-api/internal/models"
	"github.com/campus-adm/university-api/internal/service"
)

func TestRegistrationHandlerCreateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/registrations", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerListBadApprovedFlag(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/registrations?approved=maybe", nil)
	c.Request = req

	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerDropForeignStudent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, _ := json.Marshal(service.DropCoursesRequest{
		StudentID:    "someone-else",
		SessionID:    "sess1",
		DepartmentID: "d1",
		CourseIDs:    []string{"c1"},
	})
	req, _ := http.NewRequest(http.MethodPatch, "/registrations/drop", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u1", StudentID: "s1", Role: models.RoleStudent})

	handler.Drop(c)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRegistrationHandlerDropInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewRegistrationHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPatch, "/registrations/drop", bytes.NewReader([]byte(`{`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Drop(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
