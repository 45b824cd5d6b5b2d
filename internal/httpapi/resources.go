package httpapi

import (
	"net/http"

	"agent-console/internal/console"
	"agent-console/internal/tenancy"

	"github.com/gin-gonic/gin"
)

func (h Handlers) ListAgents(c *gin.Context) {
	l, err := h.Console.ListAgents(c.Request.Context(), tenancy.MustPrincipal(c))
	if err != nil {
		fail(c, err)
		return
	}
	list(c, l.Items, l.Source)
}

func (h Handlers) GetAgent(c *gin.Context) {
	a, src, err := h.Console.GetAgent(c.Request.Context(), tenancy.MustPrincipal(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a, "source": src})
}

// UpdateAgent forwards the JSON object as a partial update.
func (h Handlers) UpdateAgent(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		bindFailed(c, err)
		return
	}
	a, err := h.Console.UpdateAgent(c.Request.Context(), tenancy.MustPrincipal(c), c.Param("id"), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": a})
}

func (h Handlers) ListCalls(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 50)
	if !ok {
		return
	}
	page, ok := intQuery(c, "page", 1)
	if !ok {
		return
	}
	pg, err := h.Console.ListCalls(c.Request.Context(), tenancy.MustPrincipal(c), console.CallQuery{
		Status:  c.Query("status"),
		AgentID: c.Query("agent_id"),
		Limit:   limit,
		Page:    page,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"data":         pg.Items,
		"source":       pg.Source,
		"total_items":  len(pg.Items),
		"current_page": pg.Page,
		"total_pages":  pg.TotalPages,
	})
}

func (h Handlers) GetCall(c *gin.Context) {
	call, src, err := h.Console.GetCall(c.Request.Context(), tenancy.MustPrincipal(c), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": call, "source": src})
}

func (h Handlers) ListPhoneNumbers(c *gin.Context) {
	l, err := h.Console.ListPhoneNumbers(c.Request.Context(), tenancy.MustPrincipal(c))
	if err != nil {
		fail(c, err)
		return
	}
	list(c, l.Items, l.Source)
}

func (h Handlers) ListKnowledgeBases(c *gin.Context) {
	l, err := h.Console.ListKnowledgeBases(c.Request.Context(), tenancy.MustPrincipal(c))
	if err != nil {
		fail(c, err)
		return
	}
	list(c, l.Items, l.Source)
}
