package rbac

import (
	"errors"
	"fmt"
	"strings"
)

// Role is the closed set of console roles. Keep the string values stable;
// they are stored in users.role and carried in access tokens.
type Role string

const (
	RoleSuperAdmin  Role = "SUPER_ADMIN"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleUser        Role = "USER"
)

var ErrUnknownRole = errors.New("rbac: unknown role")

// Roles lists every valid role.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleTenantAdmin, RoleUser}
}

// ParseRole accepts the canonical names case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
	return r, nil
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin, RoleUser:
		return true
	default:
		return false
	}
}

// IsAdmin reports whether the role sees every resource of its tenant.
// Anything outside the enumeration is not an admin.
func (r Role) IsAdmin() bool {
	switch r {
	case RoleSuperAdmin, RoleTenantAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string { return string(r) }
