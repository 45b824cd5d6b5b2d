package httpapi

import (
	"net/http"
	"time"

	"agent-console/internal/auth"
	"agent-console/internal/directory"
	"agent-console/internal/tenancy"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
)

const refreshTokenCookie = "refresh_token"

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	// Tenant is the tenant name. Needed only when the email exists in several tenants.
	Tenant string `json:"tenant"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

type meResponse struct {
	directory.UserView
	TenantName  string `json:"tenant_name"`
	TenantLabel string `json:"tenant_display_name"`
}

func (h Handlers) setAuthCookies(c *gin.Context, pair auth.TokenPair) {
	now := h.now()
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tenancy.AccessTokenCookie, pair.AccessToken, int(pair.AccessExpiresAt.Sub(now)/time.Second), "/", "", h.SecureCookies, true)
	c.SetCookie(refreshTokenCookie, pair.RefreshToken, int(pair.RefreshExpiresAt.Sub(now)/time.Second), "/v1/auth", "", h.SecureCookies, true)
}

func (h Handlers) issue(c *gin.Context, u directory.User) {
	pair, err := h.Auth.IssuePair(h.now(), auth.Subject{
		UserID:   u.ID.String(),
		TenantID: u.TenantID.String(),
		Role:     u.Role.String(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.setAuthCookies(c, pair)
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
		ExpiresIn:    int64(pair.AccessExpiresAt.Sub(h.now()) / time.Second),
	})
}

// Login checks credentials and issues a token pair, as JSON and as cookies.
func (h Handlers) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFailed(c, err)
		return
	}
	u, t, err := h.Directory.Authenticate(c.Request.Context(), req.Tenant, req.Email, req.Password)
	if err != nil {
		fail(c, err)
		return
	}
	logger.FromGin(c).Info("login", "user_id", u.ID.String(), "tenant_id", t.ID.String())
	h.issue(c, u)
}

// Refresh trades a refresh token (body or cookie) for a new pair. The role is
// re-read from the user row.
func (h Handlers) Refresh(c *gin.Context) {
	var req refreshRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindFailed(c, err)
			return
		}
	}
	token := req.RefreshToken
	if token == "" {
		token, _ = c.Cookie(refreshTokenCookie)
	}
	p, err := h.Guard.ResolveRefresh(c.Request.Context(), token)
	if err != nil {
		fail(c, err)
		return
	}
	u, err := h.Directory.UserByID(c.Request.Context(), p.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	h.issue(c, u)
}

func (h Handlers) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(tenancy.AccessTokenCookie, "", -1, "/", "", h.SecureCookies, true)
	c.SetCookie(refreshTokenCookie, "", -1, "/v1/auth", "", h.SecureCookies, true)
	c.Status(http.StatusNoContent)
}

func (h Handlers) Me(c *gin.Context) {
	p := tenancy.MustPrincipal(c)
	ctx := c.Request.Context()
	u, err := h.Directory.GetUser(ctx, p.TenantID, p.UserID)
	if err != nil {
		fail(c, err)
		return
	}
	t, err := h.Directory.Tenant(ctx, p.TenantID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, meResponse{UserView: u, TenantName: t.Name, TenantLabel: t.Label()})
}
