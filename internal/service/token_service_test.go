package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-adm/university-api/internal/models"
	appErrors "github.com/campus-adm/university-api/pkg/errors"
)

func signTestToken(t *testing.T, secret string, claims *models.JWTClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestTokenServiceValidate(t *testing.T) {
	svc := NewTokenService("test-secret", "university-api", zap.NewNop())

	signed := signTestToken(t, "test-secret", &models.JWTClaims{
		UserID:    "u1",
		StudentID: "s1",
		Role:      models.RoleStudent,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "university-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	claims, err := svc.Validate(signed)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "s1", claims.StudentID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestTokenServiceValidateRejections(t *testing.T) {
	svc := NewTokenService("test-secret", "university-api", zap.NewNop())

	expired := signTestToken(t, "test-secret", &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "university-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})
	_, err := svc.Validate(expired)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	wrongKey := signTestToken(t, "other-secret", &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "university-api",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = svc.Validate(wrongKey)
	require.Error(t, err)

	wrongIssuer := signTestToken(t, "test-secret", &models.JWTClaims{
		UserID: "u1",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	_, err = svc.Validate(wrongIssuer)
	require.Error(t, err)
}
