package entities

import (
	"time"

	"github.com/google/uuid"
)

// UserRole represents user roles
type UserRole string

const (
	UserRoleAdmin UserRole = "ADMIN"
	UserRoleUser  UserRole = "USER"
)

// Permission is a capability granted to a non-admin user
type Permission string

const (
	PermGenerateLicenses   Permission = "licenses:generate"
	PermBanLicenses        Permission = "licenses:ban"
	PermPauseLicenses      Permission = "licenses:pause"
	PermExtendLicenses     Permission = "licenses:extend"
	PermResetHWID          Permission = "licenses:reset-hwid"
	PermDeleteLicenses     Permission = "licenses:delete"
	PermManageApplications Permission = "applications:manage"
)

// AllPermissions lists every grantable permission.
var AllPermissions = []Permission{
	PermGenerateLicenses,
	PermBanLicenses,
	PermPauseLicenses,
	PermExtendLicenses,
	PermResetHWID,
	PermDeleteLicenses,
	PermManageApplications,
}

// User represents a user entity
type User struct {
	ID           uuid.UUID    `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash string       `json:"-"`
	Role         UserRole     `json:"role"`
	Permissions  []Permission `json:"permissions"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// HasPermission reports whether the user was granted p.
func (u *User) HasPermission(p Permission) bool {
	for _, granted := range u.Permissions {
		if granted == p {
			return true
		}
	}
	return false
}

// CreateUserInput represents input for creating a user
type CreateUserInput struct {
	Email       string       `json:"email" binding:"required,email"`
	Name        string       `json:"name" binding:"required,min=2,max=100"`
	Password    string       `json:"password" binding:"required,min=8"`
	Role        UserRole     `json:"role"`
	Permissions []Permission `json:"permissions"`
}

// UpdatePermissionsInput replaces a user's permission set
type UpdatePermissionsInput struct {
	Permissions []Permission `json:"permissions"`
}

// LoginInput represents input for user login
type LoginInput struct {
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required"`
	UseSession bool   `json:"useSession"`
}

// AuthResponse represents authentication response
type AuthResponse struct {
	AccessToken  string `json:"accessToken,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
	User         *User  `json:"user"`
}

// CustomMessage overrides the text for a reason code. A null UserID marks
// the global override.
type CustomMessage struct {
	ID        uuid.UUID     `json:"id"`
	UserID    uuid.NullUUID `json:"userId"`
	Code      ReasonCode    `json:"code"`
	Message   string        `json:"message"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// SetMessageInput represents input for overriding a reason message
type SetMessageInput struct {
	Message string `json:"message" binding:"required,max=500"`
}

// Principal is the authenticated caller of an administrative operation,
// resolved from the access token claims.
type Principal struct {
	UserID      uuid.UUID
	Email       string
	Role        UserRole
	Permissions []Permission
}

// IsAdmin reports whether the principal carries the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == UserRoleAdmin
}

// Has reports whether the principal was granted perm. Admins hold every permission.
func (p Principal) Has(perm Permission) bool {
	if p.IsAdmin() {
		return true
	}
	for _, granted := range p.Permissions {
		if granted == perm {
			return true
		}
	}
	return false
}

// Valid reports whether perm is a known permission.
func (perm Permission) Valid() bool {
	for _, known := range AllPermissions {
		if perm == known {
			return true
		}
	}
	return false
}
