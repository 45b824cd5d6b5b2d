package httpapi

import (
	"agent-console/internal/rbac"
	"agent-console/internal/tenancy"

	"github.com/gin-gonic/gin"
)

// Register mounts the /v1 API. Infrastructure routes (health, metrics) are
// mounted by the binary.
func Register(r gin.IRouter, h Handlers) {
	v1 := r.Group("/v1")

	authGroup := v1.Group("/auth")
	{
		authGroup.POST("/login", h.Login)
		authGroup.POST("/refresh", h.Refresh)
		authGroup.POST("/logout", h.Logout)
	}

	api := v1.Group("")
	api.Use(tenancy.RequirePrincipal(h.Guard))
	{
		api.GET("/auth/me", h.Me)

		api.GET("/agents", h.ListAgents)
		api.GET("/agents/:id", h.GetAgent)
		api.PATCH("/agents/:id", h.UpdateAgent)

		api.GET("/calls", h.ListCalls)
		api.GET("/calls/:id", h.GetCall)

		api.GET("/phone-numbers", h.ListPhoneNumbers)
		api.GET("/knowledge-bases", h.ListKnowledgeBases)

		api.GET("/dashboard/stats", h.DashboardStats)

		analytics := api.Group("/analytics")
		{
			analytics.GET("/overview", h.Overview)
			analytics.GET("/trends", h.Trends)
			analytics.GET("/peak-hours", h.PeakHours)
			// weekly reports aggregate the whole tenant
			analytics.GET("/weekly-reports", rbac.RequireAdmin(), h.ListWeeklyReports)
		}

		reports := api.Group("/reports/weekly")
		reports.Use(rbac.RequireAdmin())
		{
			reports.GET("/config", h.GetReportConfig)
			reports.PATCH("/config", h.UpdateReportConfig)
			reports.POST("/send-now", h.SendWeeklyReport)
		}

		tpl := api.Group("/templates")
		{
			tpl.GET("", h.ListTemplates)
			tpl.GET("/presets", h.ListTemplatePresets)
			tpl.GET("/categories", h.TemplateCategories)
			tpl.GET("/:id", h.GetTemplate)
			tpl.POST("/:id/use", h.UseTemplate)
			tpl.POST("", rbac.RequireAdmin(), h.CreateTemplate)
			tpl.PATCH("/:id", rbac.RequireAdmin(), h.UpdateTemplate)
			tpl.DELETE("/:id", rbac.RequireAdmin(), h.DeleteTemplate)
			// presets are global
			tpl.POST("/seed-presets", rbac.RequireAnyRole(rbac.RoleSuperAdmin), h.SeedTemplatePresets)
		}

		al := api.Group("/alerts")
		{
			al.GET("/rules", h.ListAlertRules)
			al.GET("/rules/presets", h.ListAlertPresets)
			al.POST("/rules", rbac.RequireAdmin(), h.CreateAlertRule)
			al.POST("/rules/from-preset/:preset_id", rbac.RequireAdmin(), h.CreateAlertRuleFromPreset)
			al.PATCH("/rules/:id", rbac.RequireAdmin(), h.UpdateAlertRule)
			al.DELETE("/rules/:id", rbac.RequireAdmin(), h.DeleteAlertRule)

			al.GET("/events", h.ListAlertEvents)
			al.POST("/events/acknowledge-all", h.AcknowledgeAllAlerts)
			al.POST("/events/:id/acknowledge", h.AcknowledgeAlert)
			al.GET("/stats", h.AlertStats)
		}

		admin := api.Group("/admin")
		admin.Use(rbac.RequireAdmin())
		{
			admin.GET("/users", h.ListUsers)
			admin.POST("/users", h.CreateUser)
			admin.GET("/users/:user_id", h.GetUser)
			admin.PATCH("/users/:user_id", h.UpdateUser)
			admin.DELETE("/users/:user_id", h.DeleteUser)

			admin.GET("/users/:user_id/agents", h.ListUserAgents)
			admin.POST("/users/:user_id/agents", h.AssignAgent)
			admin.POST("/users/:user_id/agents/bulk", h.AssignAgentsBulk)
			admin.DELETE("/users/:user_id/agents/:agent_id", h.UnassignAgent)

			admin.GET("/agents", h.TenantAgents)

			admin.GET("/tenant", h.GetTenant)
			admin.PATCH("/tenant", h.UpdateTenant)
		}
	}
}
