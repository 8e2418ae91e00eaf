package models

import "github.com/golang-jwt/jwt/v5"

// Permission names carried in access tokens.
const (
	PermissionSubmissionRead   = "submissions:read"
	PermissionSubmissionCreate = "submissions:create"
	PermissionSubmissionReview = "submissions:review"
	PermissionUploadWrite      = "uploads:write"
)

// UserRole describes the coarse role of an authenticated user.
type UserRole string

const (
	RoleAdmin      UserRole = "ADMIN"
	RoleSupervisor UserRole = "SUPERVISOR"
	RoleEnumerator UserRole = "ENUMERATOR"
)

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID      string   `json:"user_id"`
	Role        UserRole `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the caller context handed to services.
type Identity struct {
	UserID      string
	Role        UserRole
	Permissions []string
	IP          string
	UserAgent   string
}

// HasPermission reports whether the identity carries perm. Admins carry all.
func (i Identity) HasPermission(perm string) bool {
	if i.Role == RoleAdmin {
		return true
	}
	for _, p := range i.Permissions {
		if p == perm {
			return true
		}
	}
	return false
}
