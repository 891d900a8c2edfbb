package authz

import "strings"

// Role is the principal's global role
type Role string

const (
	// RoleUser is a regular customer account
	RoleUser Role = "USER"
	// RoleAdmin can reach the admin console
	RoleAdmin Role = "ADMIN"
	// RoleSuperAdmin bypasses every role check
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// IsValid checks if the role is one of the predefined roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	default:
		return false
	}
}

// Satisfies reports whether a principal holding r passes a check requiring
// the given role. SUPER_ADMIN satisfies every requirement.
func (r Role) Satisfies(required Role) bool {
	if r == RoleSuperAdmin {
		return true
	}
	return r == required
}

func (r Role) String() string {
	return string(r)
}

// GetAllRoles returns all predefined roles
func GetAllRoles() []Role {
	return []Role{
		RoleUser,
		RoleAdmin,
		RoleSuperAdmin,
	}
}

// ParseRole parses a stored role string. Matching ignores case and
// surrounding whitespace.
func ParseRole(roleStr string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(roleStr)))
	return role, role.IsValid()
}
