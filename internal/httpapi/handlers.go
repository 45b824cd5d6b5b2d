package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"agent-console/internal/alerts"
	"agent-console/internal/auth"
	"agent-console/internal/console"
	"agent-console/internal/directory"
	"agent-console/internal/reporting"
	"agent-console/internal/templates"
	"agent-console/internal/tenancy"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth      *auth.Manager
	Guard     *tenancy.Guard
	Directory *directory.Service
	Console   *console.Service
	Reports   *reporting.Service
	Templates *templates.Service
	Alerts    *alerts.Service

	// SecureCookies marks auth cookies Secure. On outside local development.
	SecureCookies bool

	Now func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func actor(c *gin.Context) directory.Actor {
	p := tenancy.MustPrincipal(c)
	return directory.Actor{UserID: p.UserID, TenantID: p.TenantID, Role: p.Role, IP: c.ClientIP()}
}

// uuidParam parses a path parameter. Malformed ids read as not found.
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
		return uuid.Nil, false
	}
	return id, true
}

// intQuery reads an optional integer query parameter.
func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be an integer"})
		return 0, false
	}
	return v, true
}

// boolQuery reads an optional boolean query parameter; absent reads as nil.
func boolQuery(c *gin.Context, name string) (*bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": name + " must be a boolean"})
		return nil, false
	}
	return &v, true
}

func list[T any](c *gin.Context, items []T, source any) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, gin.H{"data": items, "source": source})
}
