package model

import (
	"fmt"
	"time"
)

// User represents an authentication user.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	FullName     string     `json:"full_name,omitempty"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleSuperAdmin = "super_admin"
	RoleAdmin      = "admin"
	RoleUser       = "user"
)

var roleLevels = map[string]int{
	RoleSuperAdmin: 3,
	RoleAdmin:      2,
	RoleUser:       1,
}

// ValidRole reports whether role is a known system role.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles on either side never match.
func RoleAtLeast(role, minimum string) bool {
	have, ok := roleLevels[role]
	if !ok {
		return false
	}
	want, ok := roleLevels[minimum]
	if !ok {
		return false
	}
	return have >= want
}

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidatePassword checks a new password against the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}

// Designation assigns a user to an office. The active primary designation
// determines the office the user acts for.
type Designation struct {
	ID              int64     `json:"id"`
	UserID          int64     `json:"user_id"`
	OfficeID        int64     `json:"office_id"`
	Title           string    `json:"title"`
	PurchasingPower bool      `json:"purchasing_power"`
	IsPrimary       bool      `json:"is_primary"`
	IsActive        bool      `json:"is_active"`
	AssignedAt      time.Time `json:"assigned_at"`

	// Joined fields (not always populated).
	OfficeName string `json:"office_name,omitempty"`
}

// Employee is a staff member who can receive items without holding a login.
type Employee struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	OfficeID  *int64    `json:"office_id,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}
