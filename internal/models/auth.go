package models

import "github.com/golang-jwt/jwt/v5"

// UserRole enumerates the roles minted by the upstream identity service.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleFaculty UserRole = "FACULTY"
	RoleStudent UserRole = "STUDENT"
)

// JWTClaims are the claims this API trusts on inbound access tokens. Token
// issuance lives in the identity service; this API only validates.
type JWTClaims struct {
	UserID    string   `json:"user_id"`
	StudentID string   `json:"student_id,omitempty"`
	Role      UserRole `json:"role"`
	jwt.RegisteredClaims
}
