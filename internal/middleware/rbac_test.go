package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/campus-adm/university-api/internal/models"
)

func performRBAC(t *testing.T, claims *models.JWTClaims, path, route string, allowed ...string) int {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if claims != nil {
		router.Use(func(c *gin.Context) {
			c.Set(ContextUserKey, claims)
		})
	}
	router.GET(route, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w.Code
}

func TestRBACAllowsRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}
	code := performRBAC(t, claims, "/students", "/students", string(models.RoleAdmin))
	assert.Equal(t, http.StatusOK, code)
}

func TestRBACDeniesRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}
	code := performRBAC(t, claims, "/students", "/students", string(models.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, code)
}

func TestRBACMissingClaims(t *testing.T) {
	code := performRBAC(t, nil, "/students", "/students", string(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRBACSelfAccess(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", StudentID: "s1", Role: models.RoleStudent}

	code := performRBAC(t, claims, "/students/s1", "/students/:studentId", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusOK, code)

	code = performRBAC(t, claims, "/students/s2", "/students/:studentId", string(models.RoleAdmin), "SELF")
	assert.Equal(t, http.StatusForbidden, code)
}
