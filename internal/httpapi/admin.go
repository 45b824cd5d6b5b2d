package httpapi

import (
	"net/http"

	"agent-console/internal/directory"
	"agent-console/internal/rbac"
	"agent-console/internal/tenancy"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

// --- Admin: users ---

type createUserRequest struct {
	Email    string    `json:"email" binding:"required,email"`
	Password string    `json:"password" binding:"required,min=8"`
	Role     rbac.Role `json:"role" binding:"omitempty,role"`
}

type updateUserRequest struct {
	Email    *string    `json:"email" binding:"omitempty,email"`
	Password *string    `json:"password" binding:"omitempty,min=8"`
	Role     *rbac.Role `json:"role" binding:"omitempty,role"`
	IsActive *bool      `json:"is_active"`
}

type assignRequest struct {
	AgentID string `json:"agent_id" binding:"required"`
}

type bulkAssignRequest struct {
	AgentIDs []string `json:"agent_ids" binding:"required,min=1,max=200,dive,required"`
}

type tenantPatchRequest struct {
	DisplayName *string `json:"display_name" binding:"omitempty,max=200"`
}

func (h Handlers) ListUsers(c *gin.Context) {
	users, err := h.Directory.ListUsers(c.Request.Context(), tenancy.MustPrincipal(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h Handlers) CreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	role := rbac.RoleUser
	if req.Role != "" {
		role, _ = rbac.ParseRole(req.Role.String())
	}
	u, err := h.Directory.CreateUser(c.Request.Context(), actor(c), directory.NewUser{
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("user created", "target_user_id", u.ID.String(), "role", u.Role.String())
	c.JSON(http.StatusCreated, u)
}

func (h Handlers) GetUser(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	u, err := h.Directory.GetUser(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) UpdateUser(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	patch := directory.UserPatch{Email: req.Email, Password: req.Password, Active: req.IsActive}
	if req.Role != nil {
		role, _ := rbac.ParseRole(req.Role.String())
		patch.Role = &role
	}
	u, err := h.Directory.UpdateUser(c.Request.Context(), actor(c), id, patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (h Handlers) DeleteUser(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.Directory.DeleteUser(c.Request.Context(), actor(c), id); err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("user deleted", "target_user_id", id.String())
	c.Status(http.StatusNoContent)
}

// --- Admin: assignments ---

func (h Handlers) ListUserAgents(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	as, err := h.Directory.ListAssignments(c.Request.Context(), tenancy.MustPrincipal(c).TenantID, id)
	if err != nil {
		fail(c, err)
		return
	}
	if as == nil {
		as = []directory.Assignment{}
	}
	c.JSON(http.StatusOK, as)
}

func (h Handlers) AssignAgent(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req assignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	a, err := h.Directory.Assign(c.Request.Context(), actor(c), id, req.AgentID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

func (h Handlers) AssignAgentsBulk(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	var req bulkAssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	res, err := h.Directory.AssignBulk(c.Request.Context(), actor(c), id, req.AgentIDs)
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("agents assigned", "target_user_id", id.String(), "requested", res.Requested, "created", len(res.Created))
	c.JSON(http.StatusCreated, res)
}

func (h Handlers) UnassignAgent(c *gin.Context) {
	id, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}
	if err := h.Directory.Unassign(c.Request.Context(), actor(c), id, c.Param("agent_id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// TenantAgents lists every agent of the tenant for the assignment screen.
func (h Handlers) TenantAgents(c *gin.Context) {
	l, err := h.Console.TenantAgents(c.Request.Context(), tenancy.MustPrincipal(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	list(c, l.Items, l.Source)
}

// --- Admin: tenant ---

func (h Handlers) GetTenant(c *gin.Context) {
	t, err := h.Directory.Tenant(c.Request.Context(), tenancy.MustPrincipal(c).TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

func (h Handlers) UpdateTenant(c *gin.Context) {
	var req tenantPatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	t, err := h.Directory.UpdateTenant(c.Request.Context(), actor(c), directory.TenantPatch{DisplayName: req.DisplayName})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
