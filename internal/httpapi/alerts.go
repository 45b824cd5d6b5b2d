package httpapi

import (
	"net/http"

	"agent-console/internal/alerts"
	"agent-console/internal/tenancy"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ruleRequest struct {
	Name            string            `json:"name" binding:"required,max=100"`
	Description     string            `json:"description" binding:"max=500"`
	RuleType        alerts.RuleType   `json:"rule_type" binding:"required"`
	Conditions      alerts.Conditions `json:"conditions"`
	NotifyEmail     *bool             `json:"notify_email"`
	NotifyWebhook   bool              `json:"notify_webhook"`
	WebhookURL      string            `json:"webhook_url"`
	CooldownMinutes *int              `json:"cooldown_minutes"`
}

type rulePatchRequest struct {
	Name            *string            `json:"name" binding:"omitempty,max=100"`
	Description     *string            `json:"description" binding:"omitempty,max=500"`
	Conditions      *alerts.Conditions `json:"conditions"`
	NotifyEmail     *bool              `json:"notify_email"`
	NotifyWebhook   *bool              `json:"notify_webhook"`
	WebhookURL      *string            `json:"webhook_url"`
	IsActive        *bool              `json:"is_active"`
	CooldownMinutes *int               `json:"cooldown_minutes"`
}

func (h Handlers) ListAlertRules(c *gin.Context) {
	activeOnly, ok := boolQuery(c, "active_only")
	if !ok {
		return
	}
	rules, err := h.Alerts.Rules(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, activeOnly != nil && *activeOnly)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rules)
}

func (h Handlers) ListAlertPresets(c *gin.Context) {
	c.JSON(http.StatusOK, h.Alerts.Presets())
}

func (h Handlers) CreateAlertRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	r, err := h.Alerts.CreateRule(c.Request.Context(), actor(c), alerts.NewRule{
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.RuleType,
		Conditions:      req.Conditions,
		NotifyEmail:     req.NotifyEmail,
		NotifyWebhook:   req.NotifyWebhook,
		WebhookURL:      req.WebhookURL,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("alert rule created", "rule_id", r.ID.String(), "rule_type", string(r.Type))
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) CreateAlertRuleFromPreset(c *gin.Context) {
	r, err := h.Alerts.CreateFromPreset(c.Request.Context(), actor(c), c.Param("preset_id"))
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("alert rule created", "rule_id", r.ID.String(), "preset", c.Param("preset_id"))
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) UpdateAlertRule(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req rulePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	r, err := h.Alerts.UpdateRule(c.Request.Context(), actor(c), id, alerts.RulePatch{
		Name:            req.Name,
		Description:     req.Description,
		Conditions:      req.Conditions,
		NotifyEmail:     req.NotifyEmail,
		NotifyWebhook:   req.NotifyWebhook,
		WebhookURL:      req.WebhookURL,
		Active:          req.IsActive,
		CooldownMinutes: req.CooldownMinutes,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) DeleteAlertRule(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Alerts.DeleteRule(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("alert rule deleted", "rule_id", id.String())
	c.Status(http.StatusNoContent)
}

func (h Handlers) ListAlertEvents(c *gin.Context) {
	limit, ok := intQuery(c, "limit", alerts.DefaultEventLimit)
	if !ok {
		return
	}
	acked, ok := boolQuery(c, "acknowledged")
	if !ok {
		return
	}
	evs, err := h.Alerts.Events(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, alerts.EventFilter{
		Limit:        limit,
		Severity:     alerts.Severity(c.Query("severity")),
		Acknowledged: acked,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, evs)
}

func (h Handlers) AcknowledgeAlert(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	ev, err := h.Alerts.Acknowledge(c.Request.Context(), actor(c), id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ev)
}

func (h Handlers) AcknowledgeAllAlerts(c *gin.Context) {
	n, err := h.Alerts.AcknowledgeAll(c.Request.Context(), actor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": n})
}

func (h Handlers) AlertStats(c *gin.Context) {
	st, err := h.Alerts.Stats(c.Request.Context(), tenancy.MustPrincipal(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}
