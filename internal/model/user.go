package model

import (
	"errors"
	"time"
)

// User is an operator account. Operators manage locations and may insert or
// retract offerings through the API; submitters never log in.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin    = "admin"
	RoleOperator = "operator"
)

// MinPasswordLength is the shortest password accepted for an operator.
const MinPasswordLength = 8

var roleLevels = map[string]int{
	RoleAdmin:    2,
	RoleOperator: 1,
}

// RoleAtLeast checks if role meets or exceeds the minimum required role.
// Unknown roles never pass.
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

// ValidRole reports whether role is a known operator role.
func ValidRole(role string) bool {
	_, ok := roleLevels[role]
	return ok
}

// ValidatePassword checks an operator password against the length policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
