package httpapi

import (
	"net/http"

	"agent-console/internal/tenancy"
	"agent-console/internal/templates"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

type templateRequest struct {
	Name         string `json:"name" binding:"required,max=100"`
	Description  string `json:"description" binding:"max=500"`
	Category     string `json:"category"`
	Icon         string `json:"icon" binding:"max=10"`
	Greeting     string `json:"greeting" binding:"required"`
	SystemPrompt string `json:"system_prompt" binding:"required"`
	Voice        string `json:"voice" binding:"max=50"`
	Language     string `json:"language" binding:"max=10"`
}

type templatePatchRequest struct {
	Name         *string `json:"name" binding:"omitempty,max=100"`
	Description  *string `json:"description" binding:"omitempty,max=500"`
	Category     *string `json:"category"`
	Icon         *string `json:"icon" binding:"omitempty,max=10"`
	Greeting     *string `json:"greeting"`
	SystemPrompt *string `json:"system_prompt"`
	Voice        *string `json:"voice" binding:"omitempty,max=50"`
	Language     *string `json:"language" binding:"omitempty,max=10"`
}

func (h Handlers) ListTemplates(c *gin.Context) {
	include, ok := boolQuery(c, "include_presets")
	if !ok {
		return
	}
	f := templates.Filter{Category: c.Query("category"), IncludePresets: include == nil || *include}
	ts, err := h.Templates.List(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h Handlers) ListTemplatePresets(c *gin.Context) {
	ts, err := h.Templates.Presets(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ts)
}

func (h Handlers) TemplateCategories(c *gin.Context) {
	c.JSON(http.StatusOK, h.Templates.Categories())
}

func (h Handlers) GetTemplate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := h.Templates.Get(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) CreateTemplate(c *gin.Context) {
	var req templateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	t, err := h.Templates.Create(c.Request.Context(), actor(c), templates.NewTemplate(req))
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("template created", "template_id", t.ID.String())
	c.JSON(http.StatusCreated, t)
}

func (h Handlers) UpdateTemplate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req templatePatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	t, err := h.Templates.Update(c.Request.Context(), actor(c), id, templates.Patch(req))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) DeleteTemplate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.Templates.Delete(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("template deleted", "template_id", id.String())
	c.Status(http.StatusNoContent)
}

func (h Handlers) UseTemplate(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	t, err := h.Templates.Use(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) SeedTemplatePresets(c *gin.Context) {
	res, err := h.Templates.SeedPresets(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}
