package httpapi

import (
	"errors"
	"net/http"

	"agent-console/internal/alerts"
	"agent-console/internal/console"
	"agent-console/internal/directory"
	"agent-console/internal/reporting"
	"agent-console/internal/templates"
	"agent-console/internal/tenancy"
	"agent-console/internal/upstream"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// Order matters: the first match wins.
var errorTable = []errorMapping{
	{tenancy.ErrUnauthenticated, http.StatusUnauthorized, "not authenticated"},
	{tenancy.ErrPrincipalNotFound, http.StatusUnauthorized, "not authenticated"},
	{directory.ErrInvalidCredentials, http.StatusUnauthorized, "invalid credentials"},

	{directory.ErrForbidden, http.StatusForbidden, "forbidden"},
	{console.ErrFeatureDisabled, http.StatusForbidden, "feature disabled for this tenant"},

	{directory.ErrSelfModification, http.StatusBadRequest, ""},
	{directory.ErrInvalidArgument, http.StatusBadRequest, ""},
	{reporting.ErrInvalidRequest, http.StatusBadRequest, ""},
	{reporting.ErrReportsDisabled, http.StatusBadRequest, "weekly reports are disabled"},
	{console.ErrInvalidQuery, http.StatusBadRequest, ""},
	{templates.ErrInvalidArgument, http.StatusBadRequest, ""},
	{alerts.ErrInvalidArgument, http.StatusBadRequest, ""},

	{console.ErrNotFound, http.StatusNotFound, "not found"},
	{directory.ErrNotFound, http.StatusNotFound, "not found"},
	{reporting.ErrNotFound, http.StatusNotFound, "not found"},
	{upstream.ErrNotFound, http.StatusNotFound, "not found"},
	{templates.ErrNotFound, http.StatusNotFound, "not found"},
	{alerts.ErrNotFound, http.StatusNotFound, "not found"},

	{directory.ErrConflict, http.StatusConflict, "already exists"},
	{templates.ErrConflict, http.StatusConflict, "a template with this name already exists"},

	{upstream.ErrRejected, http.StatusBadGateway, "provider rejected the request"},
	{upstream.ErrUnavailable, http.StatusServiceUnavailable, "provider unavailable and nothing cached"},
}

func statusFor(err error) (int, string) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			msg := m.message
			if msg == "" {
				msg = err.Error()
			}
			return m.status, msg
		}
	}
	return http.StatusInternalServerError, "internal error"
}

// fail writes the mapped error response. Server-side failures are logged.
func fail(c *gin.Context, err error) {
	status, msg := statusFor(err)
	switch {
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		logger.FromGin(c).Warn("provider request failed", "status", status, "err", err)
	case status >= 500:
		_ = c.Error(err)
		logger.FromGin(c).Error("request failed", "status", status, "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// bindFailed reports a malformed or invalid request body.
func bindFailed(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
}
