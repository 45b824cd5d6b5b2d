package main

import (
	"database/sql"
	"net/http"
	"time"

	"agent-console/internal/database"
	"agent-console/internal/httpapi"
	"agent-console/internal/metrics"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic.
func registerRoutes(r *gin.Engine, db *sql.DB, h httpapi.Handlers) {
	r.GET("/healthz", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), db, 2*time.Second); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "postgres": "down"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	httpapi.Register(r, h)
}
