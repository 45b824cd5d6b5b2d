package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const ginRoleKey = "role"

// SetRole records the authenticated caller's role on the gin context.
// Called by the tenancy middleware after the principal is resolved.
func SetRole(c *gin.Context, r Role) {
	c.Set(ginRoleKey, r)
}

// RoleFrom returns the role stored by SetRole.
func RoleFrom(c *gin.Context) (Role, bool) {
	v, ok := c.Get(ginRoleKey)
	if !ok {
		return "", false
	}
	r, ok := v.(Role)
	return r, ok && r.Valid()
}

// RequireAdmin allows TENANT_ADMIN and SUPER_ADMIN callers.
// It must run after the tenancy middleware.
func RequireAdmin() gin.HandlerFunc {
	return RequireAnyRole(RoleTenantAdmin, RoleSuperAdmin)
}

// RequireAnyRole allows access if the caller has any of the provided roles.
func RequireAnyRole(allowed ...Role) gin.HandlerFunc {
	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		role, ok := RoleFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
			return
		}
		if _, ok := allowedSet[role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
