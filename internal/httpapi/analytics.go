package httpapi

import (
	"net/http"

	"agent-console/internal/reporting"
	"agent-console/internal/tenancy"

	"github.com/gin-gonic/gin"
)

const defaultAnalyticsDays = 30

// window reads either explicit from/to dates or a named period.
func (h Handlers) window(c *gin.Context, defaultPeriod string) (reporting.Window, error) {
	from, to := c.Query("from"), c.Query("to")
	if from != "" || to != "" {
		return reporting.ParseRange(from, to)
	}
	raw := c.Query("period")
	if raw == "" {
		if defaultPeriod == "" {
			return reporting.Window{}, nil
		}
		raw = defaultPeriod
	}
	p, err := reporting.ParsePeriod(raw)
	if err != nil {
		return reporting.Window{}, err
	}
	return reporting.WindowFor(p, h.now())
}

// Aggregates carry their data source in a header so the body stays the statistic itself.
const dataSourceHeader = "X-Data-Source"

func (h Handlers) DashboardStats(c *gin.Context) {
	w, err := h.window(c, "")
	if err != nil {
		fail(c, err)
		return
	}
	d, src, err := h.Console.Dashboard(c.Request.Context(), tenancy.MustPrincipal(c), w)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header(dataSourceHeader, string(src))
	c.JSON(http.StatusOK, d)
}

func (h Handlers) Overview(c *gin.Context) {
	w, err := h.window(c, string(reporting.PeriodWeek))
	if err != nil {
		fail(c, err)
		return
	}
	ov, src, err := h.Console.Overview(c.Request.Context(), tenancy.MustPrincipal(c), w)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header(dataSourceHeader, string(src))
	c.JSON(http.StatusOK, ov)
}

func (h Handlers) Trends(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultAnalyticsDays)
	if !ok {
		return
	}
	pts, src, err := h.Console.Trends(c.Request.Context(), tenancy.MustPrincipal(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header(dataSourceHeader, string(src))
	c.JSON(http.StatusOK, gin.H{"days": days, "data": pts})
}

func (h Handlers) PeakHours(c *gin.Context) {
	days, ok := intQuery(c, "days", defaultAnalyticsDays)
	if !ok {
		return
	}
	ph, src, err := h.Console.PeakHours(c.Request.Context(), tenancy.MustPrincipal(c), days)
	if err != nil {
		fail(c, err)
		return
	}
	c.Header(dataSourceHeader, string(src))
	c.JSON(http.StatusOK, ph)
}

// --- Weekly reports (tenant-wide, admin only) ---

func (h Handlers) ListWeeklyReports(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 10)
	if !ok {
		return
	}
	if limit < 1 || limit > 52 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 52"})
		return
	}
	reports, err := h.Reports.ListReports(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, limit)
	if err != nil {
		fail(c, err)
		return
	}
	if reports == nil {
		reports = []reporting.WeeklyReport{}
	}
	c.JSON(http.StatusOK, reports)
}

func (h Handlers) GetReportConfig(c *gin.Context) {
	cfg, err := h.Reports.Config(c.Request.Context(), tenancy.MustPrincipal(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) UpdateReportConfig(c *gin.Context) {
	var patch reporting.ConfigPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindFailed(c, err)
		return
	}
	cfg, err := h.Reports.UpdateConfig(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (h Handlers) SendWeeklyReport(c *gin.Context) {
	rep, err := h.Reports.SendNow(c.Request.Context(), tenancy.MustPrincipal(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rep)
}
