package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"agent-console/internal/alerts"
	"agent-console/internal/audit"
	"agent-console/internal/auth"
	"agent-console/internal/cache"
	"agent-console/internal/config"
	"agent-console/internal/console"
	"agent-console/internal/directory"
	"agent-console/internal/rbac"
	"agent-console/internal/reporting"
	"agent-console/internal/templates"
	"agent-console/internal/tenancy"
	"agent-console/internal/upstream"
	"agent-console/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var tenantID = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")

const providerCall1 = `{"id":"c1","agent_id":"a1","status":"completed","start_time":"2026-10-19T09:00:00Z","duration_seconds":60,"cost":0.5}`
const providerCall2 = `{"id":"c2","agent_id":2,"status":"missed","start_time":"2026-10-18T10:00:00Z"}`

// provider fakes the voice-agent platform. Setting down makes every call a 503.
type provider struct {
	srv  *httptest.Server
	down atomic.Bool

	mu   sync.Mutex
	hits map[string]int
}

func (p *provider) count(path string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.hits[path]
}

func newProvider(t *testing.T) *provider {
	p := &provider{hits: map[string]int{}}
	routes := map[string]string{
		"/agents":          `{"data":[{"id":"a1","name":"Reception","status":"active"},{"id":2,"name":"Billing","status":"paused"}]}`,
		"/agents/a1":       `{"data":{"id":"a1","name":"Reception","status":"active"}}`,
		"/calls":           `{"data":[` + providerCall1 + `,` + providerCall2 + `],"total_pages":1}`,
		"/calls/c1":        providerCall1,
		"/calls/c2":        providerCall2,
		"/phone-numbers":   `[{"id":"p1","number":"+33100","agent_id":"a1"},{"id":"p2","number":"+33200"}]`,
		"/knowledge-bases": `{"data":[]}`,
	}
	p.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.hits[r.URL.Path]++
		p.mu.Unlock()
		if p.down.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Header.Get("X-Api-Key") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(p.srv.Close)
	return p
}

type env struct {
	router    *gin.Engine
	handlers  Handlers
	tokens    *auth.Manager
	provider  *provider
	dirRepo   *directory.MemoryRepo
	alertRepo *alerts.MemoryRepo
	admin     directory.User
	user      directory.User
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, rbac.RegisterValidation())

	prov := newProvider(t)
	client, err := upstream.NewClient(upstream.Options{
		BaseURL:       prov.srv.URL,
		DefaultAPIKey: "deployment-key",
		Timeout:       2 * time.Second,
		RatePerSecond: 1000,
		Burst:         100,
	})
	require.NoError(t, err)

	tokens, err := auth.NewManager(config.AuthConfig{JWTSecret: "test", AccessTokenTTL: time.Hour, RefreshTokenTTL: 24 * time.Hour})
	require.NoError(t, err)

	dirRepo := directory.NewMemoryRepo()
	dirRepo.PutTenant(directory.Tenant{ID: tenantID, Name: "acme", DisplayName: "Acme", AgentEnabled: true})

	consoleSvc := console.NewService(client, dirRepo, cache.NewMemoryRepo(), console.Options{})
	dirSvc := directory.NewService(dirRepo, audit.NewService(audit.NewMemoryRepo()), consoleSvc, nil)
	reports := reporting.NewService(reporting.NewMemoryRepo(), consoleSvc, nil)
	auditSvc := audit.NewService(audit.NewMemoryRepo())
	alertRepo := alerts.NewMemoryRepo()

	ctx := context.Background()
	hash, err := auth.HashPassword("correct-horse")
	require.NoError(t, err)
	admin, err := dirRepo.CreateUser(ctx, directory.User{ID: uuid.New(), TenantID: tenantID, Email: "admin@acme.io", PasswordHash: hash, Role: rbac.RoleTenantAdmin, Active: true})
	require.NoError(t, err)
	user, err := dirRepo.CreateUser(ctx, directory.User{ID: uuid.New(), TenantID: tenantID, Email: "user@acme.io", PasswordHash: hash, Role: rbac.RoleUser, Active: true})
	require.NoError(t, err)
	_, err = dirRepo.CreateAssignment(ctx, directory.Assignment{ID: uuid.New(), UserID: user.ID, TenantID: tenantID, AgentExternalID: "a1", AssignedAt: time.Now()})
	require.NoError(t, err)

	e := &env{
		handlers: Handlers{
			Auth:      tokens,
			Guard:     tenancy.NewGuard(tokens, dirSvc),
			Directory: dirSvc,
			Console:   consoleSvc,
			Reports:   reports,
			Templates: templates.NewService(templates.NewMemoryRepo(), auditSvc, nil),
			Alerts:    alerts.NewService(alertRepo, consoleSvc, auditSvc, nil),
		},
		tokens:    tokens,
		provider:  prov,
		dirRepo:   dirRepo,
		alertRepo: alertRepo,
		admin:     admin,
		user:      user,
	}
	e.rebuild()
	return e
}

// rebuild registers the routes again after a change to e.handlers.
func (e *env) rebuild() {
	r := gin.New()
	r.Use(logger.Middleware(logger.New("test")))
	Register(r, e.handlers)
	e.router = r
}

func (e *env) token(t *testing.T, u directory.User) string {
	t.Helper()
	pair, err := e.tokens.IssuePair(time.Now(), auth.Subject{UserID: u.ID.String(), TenantID: u.TenantID.String(), Role: u.Role.String()})
	require.NoError(t, err)
	return pair.AccessToken
}

func (e *env) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

type listBody[T any] struct {
	Data   []T    `json:"data"`
	Source string `json:"source"`
}

func TestLoginAndRefresh(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "Admin@Acme.io", "password": "correct-horse"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tok tokenResponse
	decode(t, w, &tok)
	require.NotEmpty(t, tok.AccessToken)
	require.Equal(t, "bearer", tok.TokenType)
	require.Contains(t, strings.Join(w.Header().Values("Set-Cookie"), ";"), tenancy.AccessTokenCookie+"=")

	w = e.do(t, http.MethodGet, "/v1/auth/me", tok.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me meResponse
	decode(t, w, &me)
	require.Equal(t, "admin@acme.io", me.Email)
	require.Equal(t, "Acme", me.TenantLabel)

	w = e.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tok.RefreshToken})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// an access token is not a refresh token
	w = e.do(t, http.MethodPost, "/v1/auth/refresh", "", gin.H{"refresh_token": tok.AccessToken})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "admin@acme.io", "password": "wrong-password"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/v1/auth/login", "", gin.H{"email": "not-an-email", "password": "x"})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequired(t *testing.T) {
	e := newEnv(t)
	for _, path := range []string{"/v1/agents", "/v1/calls", "/v1/dashboard/stats", "/v1/admin/users"} {
		w := e.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusUnauthorized, w.Code, path)
	}

	w := e.do(t, http.MethodGet, "/v1/admin/users", e.token(t, e.user), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodGet, "/v1/reports/weekly/config", e.token(t, e.user), nil)
	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestAgentsAreScopedAndCached(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/v1/agents", e.token(t, e.admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var all listBody[upstream.Agent]
	decode(t, w, &all)
	require.Equal(t, "live", all.Source)
	require.Len(t, all.Data, 2)
	require.Equal(t, "2", all.Data[1].ID)

	userToken := e.token(t, e.user)
	w = e.do(t, http.MethodGet, "/v1/agents", userToken, nil)
	var mine listBody[upstream.Agent]
	decode(t, w, &mine)
	require.Len(t, mine.Data, 1)
	require.Equal(t, "a1", mine.Data[0].ID)

	w = e.do(t, http.MethodGet, "/v1/agents/2", userToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	e.provider.down.Store(true)
	w = e.do(t, http.MethodGet, "/v1/agents", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &mine)
	require.Equal(t, "cache", mine.Source)
	require.Len(t, mine.Data, 1)

	// nothing cached yet for phone numbers
	w = e.do(t, http.MethodGet, "/v1/phone-numbers", userToken, nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCalls(t *testing.T) {
	e := newEnv(t)
	userToken := e.token(t, e.user)

	w := e.do(t, http.MethodGet, "/v1/calls?limit=20", userToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Data       []map[string]any `json:"data"`
		TotalPages int              `json:"total_pages"`
	}
	decode(t, w, &page)
	require.Len(t, page.Data, 1)
	require.Equal(t, "c1", page.Data[0]["id"])

	w = e.do(t, http.MethodGet, "/v1/calls/c2", userToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodGet, "/v1/calls/c2", e.token(t, e.admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/v1/calls?limit=abc", userToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnalytics(t *testing.T) {
	e := newEnv(t)
	adminToken := e.token(t, e.admin)

	w := e.do(t, http.MethodGet, "/v1/analytics/overview?from=2026-10-18&to=2026-10-19", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ov reporting.Overview
	decode(t, w, &ov)
	require.Equal(t, 2, ov.TotalCalls)
	require.Equal(t, 50.0, ov.CompletionRate)

	w = e.do(t, http.MethodGet, "/v1/analytics/overview?from=2026-10-20&to=2026-10-19", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/analytics/trends?days=3", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/v1/analytics/trends?days=7", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "live", w.Header().Get(dataSourceHeader))
	var trends map[string]any
	decode(t, w, &trends)
	require.NotContains(t, trends, "source")
	require.Len(t, trends["data"], 8)

	w = e.do(t, http.MethodGet, "/v1/analytics/peak-hours?days=7", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "live", w.Header().Get(dataSourceHeader))
}

func TestOverviewDefaultsToCurrentWeek(t *testing.T) {
	e := newEnv(t)
	now := time.Date(2026, 10, 21, 12, 0, 0, 0, time.UTC) // Wednesday
	e.handlers.Now = func() time.Time { return now }
	e.rebuild()

	w := e.do(t, http.MethodGet, "/v1/analytics/overview", e.token(t, e.admin), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ov reporting.Overview
	decode(t, w, &ov)
	require.Equal(t, time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), ov.Window.Start)
	require.Equal(t, now, ov.Window.End)
	// c1 is Monday 2026-10-19, c2 the Sunday before
	require.Equal(t, 1, ov.TotalCalls)
}

func TestDashboardDegradesWhenProviderIsDown(t *testing.T) {
	e := newEnv(t)
	e.provider.down.Store(true)

	w := e.do(t, http.MethodGet, "/v1/dashboard/stats", e.token(t, e.user), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d reporting.Dashboard
	decode(t, w, &d)
	require.Zero(t, d.TotalCalls)
	require.Equal(t, 1, d.TotalAgents)
}

func TestAdminUsers(t *testing.T) {
	e := newEnv(t)
	adminToken := e.token(t, e.admin)

	w := e.do(t, http.MethodPost, "/v1/admin/users", adminToken, gin.H{"email": "new@acme.io", "password": "long-enough", "role": "boss"})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPost, "/v1/admin/users", adminToken, gin.H{"email": "root@acme.io", "password": "long-enough", "role": "SUPER_ADMIN"})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPost, "/v1/admin/users", adminToken, gin.H{"email": "new@acme.io", "password": "long-enough", "role": "user"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created directory.UserView
	decode(t, w, &created)
	require.Equal(t, rbac.RoleUser, created.Role)

	w = e.do(t, http.MethodPost, "/v1/admin/users", adminToken, gin.H{"email": "new@acme.io", "password": "long-enough"})
	require.Equal(t, http.StatusConflict, w.Code)

	base := "/v1/admin/users/" + created.ID.String()
	w = e.do(t, http.MethodPost, base+"/agents/bulk", adminToken, gin.H{"agent_ids": []string{"a1", "2", "a1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var bulk directory.BulkResult
	decode(t, w, &bulk)
	require.Len(t, bulk.Created, 2)

	w = e.do(t, http.MethodPost, base+"/agents", adminToken, gin.H{"agent_id": "a1"})
	require.Equal(t, http.StatusConflict, w.Code)
	w = e.do(t, http.MethodPost, base+"/agents", adminToken, gin.H{"agent_id": "ghost"})
	require.Equal(t, http.StatusNotFound, w.Code)

	w = e.do(t, http.MethodDelete, base+"/agents/a1", adminToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = e.do(t, http.MethodPatch, "/v1/admin/users/"+e.admin.ID.String(), adminToken, gin.H{"is_active": false})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodDelete, base, adminToken, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, http.MethodGet, base, adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(t, http.MethodGet, "/v1/admin/users/not-a-uuid", adminToken, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestBulkAssignListsAgentsOnce(t *testing.T) {
	e := newEnv(t)
	adminToken := e.token(t, e.admin)

	w := e.do(t, http.MethodPost, "/v1/admin/users", adminToken, gin.H{"email": "ops@acme.io", "password": "long-enough"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created directory.UserView
	decode(t, w, &created)

	before := e.provider.count("/agents")
	w = e.do(t, http.MethodPost, "/v1/admin/users/"+created.ID.String()+"/agents/bulk", adminToken, gin.H{"agent_ids": []string{"a1", "2"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	require.Equal(t, 1, e.provider.count("/agents")-before)

	before = e.provider.count("/agents")
	w = e.do(t, http.MethodPost, "/v1/admin/users/"+created.ID.String()+"/agents/bulk", adminToken, gin.H{"agent_ids": []string{"a1", "ghost", "2"}})
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, 1, e.provider.count("/agents")-before)
}

func TestAdminTenantAndAgents(t *testing.T) {
	e := newEnv(t)
	adminToken := e.token(t, e.admin)

	w := e.do(t, http.MethodPatch, "/v1/admin/tenant", adminToken, gin.H{"display_name": "Acme Europe"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var tenant directory.Tenant
	decode(t, w, &tenant)
	require.Equal(t, "Acme Europe", tenant.DisplayName)

	w = e.do(t, http.MethodGet, "/v1/admin/agents", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var agents listBody[upstream.Agent]
	decode(t, w, &agents)
	require.Equal(t, "Billing", agents.Data[0].Name)
}

func TestWeeklyReports(t *testing.T) {
	e := newEnv(t)
	adminToken := e.token(t, e.admin)

	w := e.do(t, http.MethodGet, "/v1/reports/weekly/config", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var cfg reporting.ReportConfig
	decode(t, w, &cfg)
	require.False(t, cfg.Enabled)

	w = e.do(t, http.MethodPost, "/v1/reports/weekly/send-now", adminToken, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, "/v1/reports/weekly/config", adminToken, gin.H{"recipients": []string{"not-an-email"}})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, "/v1/reports/weekly/config", adminToken, gin.H{"enabled": true, "recipients": []string{"ops@acme.io"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = e.do(t, http.MethodPost, "/v1/reports/weekly/send-now", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var rep reporting.WeeklyReport
	decode(t, w, &rep)
	require.Equal(t, []string{"ops@acme.io"}, rep.SentTo)

	w = e.do(t, http.MethodGet, "/v1/analytics/weekly-reports", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var reports []reporting.WeeklyReport
	decode(t, w, &reports)
	require.Len(t, reports, 1)
}
