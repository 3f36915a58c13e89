package domain

import (
	"fmt"
	"slices"
	"strconv"
	"time"
)

// Role classifies a subject's privilege level. Values match the roles table.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleStudent
	RoleInstructor
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStudent:
		return "student"
	case RoleInstructor:
		return "instructor"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the assignable roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleStudent || r == RoleInstructor
}

// ParseRole accepts a role name ("admin") or its numeric value ("1").
func ParseRole(s string) (Role, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if r := Role(n); r.Valid() {
			return r, nil
		}
		return RoleUnknown, fmt.Errorf("%w: %d", ErrUnknownRole, n)
	}
	for _, r := range []Role{RoleAdmin, RoleStudent, RoleInstructor} {
		if r.String() == s {
			return r, nil
		}
	}
	return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
}

// Claims are the identity fields carried by a verified access token.
type Claims struct {
	SubjectID int64
	Role      Role
}

// HasRole reports whether the claimed role is one of roles.
func (c Claims) HasRole(roles ...Role) bool {
	return slices.Contains(roles, c.Role)
}

// User is a registered account.
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// Claims returns the identity a token issued for u carries.
func (u User) Claims() Claims {
	return Claims{SubjectID: u.ID, Role: u.Role}
}

// Session is returned by a successful login.
type Session struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	User        User   `json:"user"`
}
