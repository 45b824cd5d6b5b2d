package tenancy

import (
	"errors"
	"net/http"
	"strings"

	"agent-console/internal/rbac"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// AccessTokenCookie is the cookie the browser console authenticates with.
const AccessTokenCookie = "access_token"

// Credential extracts an access token from the Authorization header or,
// failing that, the access token cookie.
func Credential(c *gin.Context) string {
	if h := strings.TrimSpace(c.GetHeader("Authorization")); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if v, err := c.Cookie(AccessTokenCookie); err == nil {
		return v
	}
	return ""
}

// RequirePrincipal authenticates the request and stores the Principal in the
// request context. The role is also exposed to rbac middleware.
func RequirePrincipal(g *Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := g.Resolve(c.Request.Context(), Credential(c))
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrPrincipalNotFound) {
				logger.FromGin(c).Info("authentication rejected", "err", err)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
				return
			}
			logger.FromGin(c).Error("principal lookup failed", "err", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		logger.Attach(c, logger.FromGin(c).With(
			"tenant_id", p.TenantID.String(),
			"user_id", p.UserID.String(),
		))
		c.Request = c.Request.WithContext(WithPrincipal(c.Request.Context(), p))
		rbac.SetRole(c, p.Role)
		c.Next()
	}
}

// MustPrincipal returns the principal stored by RequirePrincipal.
func MustPrincipal(c *gin.Context) Principal {
	p, ok := FromContext(c.Request.Context())
	if !ok {
		panic("tenancy: RequirePrincipal middleware not installed")
	}
	return p
}
