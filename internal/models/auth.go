package models

import "github.com/golang-jwt/jwt/v5"

// UserRole represents the roles carried in reviewer tokens.
type UserRole string

const (
	RoleDean  UserRole = "dean"
	RoleAdmin UserRole = "admin"
)

// JWTClaims represents the JWT payload for reviewer access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
