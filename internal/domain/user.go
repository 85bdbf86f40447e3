package domain

import (
	"regexp"
	"strings"
	"time"
)

// Role is a portal role.
type Role string

const (
	RoleCustomer    Role = "customer"
	RoleUnderwriter Role = "underwriter"
	RoleAdjuster    Role = "adjuster"
	RoleAnalyst     Role = "analyst"
	RoleManager     Role = "manager"
	RoleAdmin       Role = "admin"
)

// Roles lists every known role.
var Roles = []Role{RoleCustomer, RoleUnderwriter, RoleAdjuster, RoleAnalyst, RoleManager, RoleAdmin}

// ParseRole normalizes a role string. The second result is false for unknown roles.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// User is a portal account.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}
