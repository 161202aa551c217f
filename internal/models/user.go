package models

import "github.com/golang-jwt/jwt/v5"

// UserRole labels the authenticated caller's role.
type UserRole string

const (
	RoleTeacher   UserRole = "TEACHER"
	RolePrincipal UserRole = "PRINCIPAL"
	RoleDistrict  UserRole = "DISTRICT"
	RoleAdmin     UserRole = "ADMIN"
)

// JWTClaims represents the JWT payload for access tokens. Tokens are issued
// by the upstream auth service; this API only validates them.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	SchoolID string   `json:"school_id"`
	jwt.RegisteredClaims
}

// Pagination describes paged list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
