package domain

import (
	"fmt"
	"strings"
)

// Role is the closed set of portal roles carried in tokens.
type Role string

const (
	RoleJobSeeker Role = "JOB_SEEKER"
	RoleEmployer  Role = "EMPLOYER"
)

// Roles lists every known role.
func Roles() []Role {
	return []Role{RoleJobSeeker, RoleEmployer}
}

// ParseRole converts raw input into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToUpper(strings.TrimSpace(raw))) {
	case RoleJobSeeker:
		return RoleJobSeeker, nil
	case RoleEmployer:
		return RoleEmployer, nil
	default:
		return "", fmt.Errorf("unknown role %q", raw)
	}
}

// Valid reports whether r is a member of the closed role set.
func (r Role) Valid() bool {
	switch r {
	case RoleJobSeeker, RoleEmployer:
		return true
	default:
		return false
	}
}
