package auth

import (
	"errors"
	"regexp"
	"time"
)

// emailPattern is a pragmatic email format check. Deliverability is not
// verified; the check only rejects obviously malformed addresses.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// maxEmailLength is the maximum allowed email length.
const maxEmailLength = 254

// IsValidEmail checks if an email address meets format requirements.
func IsValidEmail(email string) bool {
	return len(email) <= maxEmailLength && emailPattern.MatchString(email)
}

// Role represents an authorisation tier in the system.
type Role string

const (
	// RoleGuest is a visitor account: read-only dashboard access,
	// no device control.
	RoleGuest Role = "guest"

	// RoleUser is a household member. Device control is subject to
	// per-device permission entries.
	RoleUser Role = "user"

	// RoleAdmin has full control: devices, rooms, users. Bypasses
	// per-device permission checks.
	RoleAdmin Role = "admin"
)

// ValidRoles is the set of valid account roles.
var ValidRoles = []Role{RoleGuest, RoleUser, RoleAdmin}

// IsValidRole returns true if the role is a valid account role.
func IsValidRole(r Role) bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// User represents an authenticated account.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"` // never serialised
	Role         Role      `json:"role"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Sentinel errors for auth operations.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user account is inactive")
	ErrEmailExists        = errors.New("email already registered")
	ErrTokenInvalid       = errors.New("invalid token")
	ErrForbidden          = errors.New("insufficient permissions")
)
