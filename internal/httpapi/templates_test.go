package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"agent-console/internal/directory"
	"agent-console/internal/rbac"
	"agent-console/internal/templates"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func (e *env) superAdmin(t *testing.T) directory.User {
	t.Helper()
	u, err := e.dirRepo.CreateUser(context.Background(), directory.User{ID: uuid.New(), TenantID: tenantID, Email: "root@acme.io", PasswordHash: e.admin.PasswordHash, Role: rbac.RoleSuperAdmin, Active: true, CreatedAt: time.Now()})
	require.NoError(t, err)
	return u
}

func TestTemplates(t *testing.T) {
	e := newEnv(t)
	adminToken, userToken := e.token(t, e.admin), e.token(t, e.user)

	w := e.do(t, http.MethodPost, "/v1/templates/seed-presets", adminToken, nil)
	require.Equal(t, http.StatusForbidden, w.Code, "seeding global presets needs a super admin")

	w = e.do(t, http.MethodPost, "/v1/templates/seed-presets", e.token(t, e.superAdmin(t)), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var seeded templates.SeedResult
	decode(t, w, &seeded)
	require.Positive(t, seeded.Created)
	require.Equal(t, seeded.Created, seeded.TotalPresets)

	body := gin.H{"name": "Front desk", "greeting": "Hello!", "system_prompt": "Book appointments.", "category": "services"}
	w = e.do(t, http.MethodPost, "/v1/templates", userToken, body)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/v1/templates", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created templates.Template
	decode(t, w, &created)
	require.Equal(t, templates.DefaultVoice, created.Voice)

	w = e.do(t, http.MethodPost, "/v1/templates", adminToken, body)
	require.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodPost, "/v1/templates", adminToken, gin.H{"name": "No prompt", "greeting": "Hi"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/templates?include_presets=false", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var own []templates.Template
	decode(t, w, &own)
	require.Len(t, own, 1)

	w = e.do(t, http.MethodGet, "/v1/templates", userToken, nil)
	var all []templates.Template
	decode(t, w, &all)
	require.Len(t, all, seeded.TotalPresets+1)
	require.True(t, all[0].IsPreset)

	w = e.do(t, http.MethodGet, "/v1/templates?include_presets=maybe", userToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/templates/categories", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cats []templates.Category
	decode(t, w, &cats)
	require.NotEmpty(t, cats)

	w = e.do(t, http.MethodPost, "/v1/templates/"+created.ID.String()+"/use", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var used templates.Template
	decode(t, w, &used)
	require.Equal(t, 1, used.UsageCount)

	w = e.do(t, http.MethodPatch, "/v1/templates/"+all[0].ID.String(), adminToken, gin.H{"name": "Hijacked"})
	require.Equal(t, http.StatusNotFound, w.Code, "presets are read-only")

	w = e.do(t, http.MethodPatch, "/v1/templates/"+created.ID.String(), adminToken, gin.H{"voice": "claire"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodDelete, "/v1/templates/"+created.ID.String(), adminToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, "/v1/templates/"+created.ID.String(), userToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}
