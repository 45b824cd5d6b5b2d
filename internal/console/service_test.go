package console

import (
	"context"
	"sync"
	"testing"
	"time"

	"agent-console/internal/cache"
	"agent-console/internal/calls"
	"agent-console/internal/directory"
	"agent-console/internal/rbac"
	"agent-console/internal/reporting"
	"agent-console/internal/tenancy"
	"agent-console/internal/upstream"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	tenantA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	tenantB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
	userA   = uuid.MustParse("aaaaaaaa-1111-0000-0000-000000000001")
)

var (
	errDown     = &upstream.Error{Op: "test", StatusCode: 503, Kind: upstream.ErrUnavailable}
	errRejected = &upstream.Error{Op: "test", StatusCode: 401, Kind: upstream.ErrRejected}
	errMissing  = &upstream.Error{Op: "test", StatusCode: 404, Kind: upstream.ErrNotFound}
)

type fakeUpstream struct {
	mu     sync.Mutex
	err    error
	agents map[uuid.UUID][]upstream.Agent
	calls  map[uuid.UUID][]calls.Call
	phones map[uuid.UUID][]upstream.PhoneNumber
	kbs    map[uuid.UUID][]upstream.KnowledgeBase
	hits   int
}

func newFakeUpstream() *fakeUpstream {
	return &fakeUpstream{
		agents: map[uuid.UUID][]upstream.Agent{},
		calls:  map[uuid.UUID][]calls.Call{},
		phones: map[uuid.UUID][]upstream.PhoneNumber{},
		kbs:    map[uuid.UUID][]upstream.KnowledgeBase{},
	}
}

func (f *fakeUpstream) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeUpstream) begin() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hits++
	return f.err
}

func (f *fakeUpstream) ListAgents(_ context.Context, t upstream.Tenant) ([]upstream.Agent, error) {
	if err := f.begin(); err != nil {
		return nil, err
	}
	return f.agents[t.ID], nil
}

func (f *fakeUpstream) GetAgent(_ context.Context, t upstream.Tenant, id string) (upstream.Agent, error) {
	if err := f.begin(); err != nil {
		return upstream.Agent{}, err
	}
	for _, a := range f.agents[t.ID] {
		if a.ID == id {
			return a, nil
		}
	}
	return upstream.Agent{}, errMissing
}

func (f *fakeUpstream) UpdateAgent(_ context.Context, t upstream.Tenant, id string, patch map[string]any) (upstream.Agent, error) {
	if err := f.begin(); err != nil {
		return upstream.Agent{}, err
	}
	for i, a := range f.agents[t.ID] {
		if a.ID == id {
			if name, ok := patch["name"].(string); ok {
				a.Name = name
			}
			f.agents[t.ID][i] = a
			return a, nil
		}
	}
	return upstream.Agent{}, errMissing
}

func (f *fakeUpstream) ListCalls(_ context.Context, t upstream.Tenant, limit, page int) (upstream.CallPage, error) {
	if err := f.begin(); err != nil {
		return upstream.CallPage{}, err
	}
	all := f.calls[t.ID]
	total := max((len(all)+limit-1)/limit, 1)
	from := min((page-1)*limit, len(all))
	to := min(from+limit, len(all))
	return upstream.CallPage{Calls: all[from:to], Page: page, TotalPages: total}, nil
}

func (f *fakeUpstream) GetCall(_ context.Context, t upstream.Tenant, id string) (calls.Call, error) {
	if err := f.begin(); err != nil {
		return calls.Call{}, err
	}
	for _, c := range f.calls[t.ID] {
		if c.ID == id {
			return c, nil
		}
	}
	return calls.Call{}, errMissing
}

func (f *fakeUpstream) ListPhoneNumbers(_ context.Context, t upstream.Tenant) ([]upstream.PhoneNumber, error) {
	if err := f.begin(); err != nil {
		return nil, err
	}
	return f.phones[t.ID], nil
}

func (f *fakeUpstream) ListKnowledgeBases(_ context.Context, t upstream.Tenant) ([]upstream.KnowledgeBase, error) {
	if err := f.begin(); err != nil {
		return nil, err
	}
	return f.kbs[t.ID], nil
}

type fakeDirectory struct {
	tenants  map[uuid.UUID]directory.Tenant
	assigned map[uuid.UUID][]string
}

func (d fakeDirectory) GetTenant(_ context.Context, id uuid.UUID) (directory.Tenant, error) {
	t, ok := d.tenants[id]
	if !ok {
		return directory.Tenant{}, directory.ErrNotFound
	}
	return t, nil
}

func (d fakeDirectory) AgentIDsForUser(_ context.Context, _ uuid.UUID, userID uuid.UUID) ([]string, error) {
	return d.assigned[userID], nil
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func fl(v float64) *float64 { return &v }

type fixture struct {
	svc  *Service
	up   *fakeUpstream
	dir  fakeDirectory
	repo *cache.MemoryRepo
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	up := newFakeUpstream()
	up.agents[tenantA] = []upstream.Agent{
		{ID: "a1", Name: "Reception", Status: "active"},
		{ID: "a2", Name: "billing", Status: "paused"},
		{ID: "a3", Name: "Afterhours", Status: "active"},
	}
	up.agents[tenantB] = []upstream.Agent{{ID: "b1", Name: "Other tenant"}}
	up.calls[tenantA] = []calls.Call{
		{ID: "c1", AgentID: "a1", Status: calls.StatusCompleted, StartedAt: ts("2026-10-19T09:00:00Z"), DurationSeconds: fl(60), Cost: fl(0.5)},
		{ID: "c2", AgentID: "a1", Status: calls.StatusMissed, StartedAt: ts("2026-10-18T10:00:00Z")},
		{ID: "c3", AgentID: "a2", Status: calls.StatusCompleted, StartedAt: ts("2026-10-17T11:00:00Z"), DurationSeconds: fl(120)},
		{ID: "c4", Status: calls.StatusFailed, StartedAt: ts("2026-10-16T12:00:00Z")},
	}
	up.phones[tenantA] = []upstream.PhoneNumber{
		{ID: "p1", Number: "+3311", AgentID: "a1"},
		{ID: "p2", Number: "+3322", AgentID: "a2"},
		{ID: "p3", Number: "+3333"},
	}
	up.kbs[tenantA] = []upstream.KnowledgeBase{{ID: "k1", Name: "FAQ", AgentID: "a2"}}

	dir := fakeDirectory{
		tenants: map[uuid.UUID]directory.Tenant{
			tenantA: {ID: tenantA, Name: "acme", AgentEnabled: true},
			tenantB: {ID: tenantB, Name: "globex", AgentEnabled: false},
		},
		assigned: map[uuid.UUID][]string{userA: {"a1"}},
	}
	repo := cache.NewMemoryRepo()
	svc := NewService(up, dir, repo, Options{PageSize: 2, MaxPages: 5})
	svc.clock = func() time.Time { return time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC) }
	return fixture{svc: svc, up: up, dir: dir, repo: repo}
}

func admin(tenant uuid.UUID) tenancy.Principal {
	return tenancy.Principal{UserID: uuid.New(), TenantID: tenant, Role: rbac.RoleTenantAdmin}
}

func user() tenancy.Principal {
	return tenancy.Principal{UserID: userA, TenantID: tenantA, Role: rbac.RoleUser}
}

func agentIDs(as []upstream.Agent) []string {
	out := make([]string, 0, len(as))
	for _, a := range as {
		out = append(out, a.ID)
	}
	return out
}

func callIDs(cs []calls.Call) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestListAgents_ScopeAndFallback(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	l, err := fx.svc.ListAgents(ctx, admin(tenantA))
	require.NoError(t, err)
	require.Equal(t, cache.SourceLive, l.Source)
	require.Equal(t, []string{"a1", "a2", "a3"}, agentIDs(l.Items))

	l, err = fx.svc.ListAgents(ctx, user())
	require.NoError(t, err)
	require.Equal(t, []string{"a1"}, agentIDs(l.Items))

	fx.up.setErr(errDown)
	l, err = fx.svc.ListAgents(ctx, user())
	require.NoError(t, err)
	require.Equal(t, cache.SourceCache, l.Source)
	require.Equal(t, []string{"a1"}, agentIDs(l.Items))

	again, err := fx.svc.ListAgents(ctx, user())
	require.NoError(t, err)
	require.Equal(t, l, again)

	// nothing cached for tenant B: the outage surfaces
	_, err = fx.svc.ListAgents(ctx, admin(tenantB))
	require.ErrorIs(t, err, upstream.ErrUnavailable)
}

func TestListAgents_RejectedIsNotPaperedOver(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.ListAgents(ctx, admin(tenantA))
	require.NoError(t, err)

	fx.up.setErr(errRejected)
	_, err = fx.svc.ListAgents(ctx, admin(tenantA))
	require.ErrorIs(t, err, upstream.ErrRejected)
}

func TestTenantIsolationInCache(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.ListAgents(ctx, admin(tenantB))
	require.NoError(t, err)

	fx.up.setErr(errDown)
	_, err = fx.svc.ListAgents(ctx, admin(tenantA))
	require.ErrorIs(t, err, upstream.ErrUnavailable)

	l, err := fx.svc.ListAgents(ctx, admin(tenantB))
	require.NoError(t, err)
	require.Equal(t, []string{"b1"}, agentIDs(l.Items))
}

func TestGetAgent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, src, err := fx.svc.GetAgent(ctx, user(), "a1")
	require.NoError(t, err)
	require.Equal(t, cache.SourceLive, src)
	require.Equal(t, "Reception", a.Name)

	before := fx.up.hits
	_, _, err = fx.svc.GetAgent(ctx, user(), "a2")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, before, fx.up.hits, "out-of-scope reads never reach the provider")

	_, _, err = fx.svc.GetAgent(ctx, admin(tenantA), "zz")
	require.ErrorIs(t, err, ErrNotFound)

	fx.up.setErr(errDown)
	a, src, err = fx.svc.GetAgent(ctx, user(), "a1")
	require.NoError(t, err)
	require.Equal(t, cache.SourceCache, src)
	require.Equal(t, "a1", a.ID)
}

func TestUpdateAgent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	a, err := fx.svc.UpdateAgent(ctx, user(), "a1", map[string]any{"name": "Front desk"})
	require.NoError(t, err)
	require.Equal(t, "Front desk", a.Name)

	cached, err := fx.svc.agents.Get(ctx, tenantA, "a1")
	require.NoError(t, err)
	require.Equal(t, "Front desk", cached.Name)

	_, err = fx.svc.UpdateAgent(ctx, user(), "a2", map[string]any{"name": "x"})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = fx.svc.UpdateAgent(ctx, admin(tenantA), "a1", map[string]any{})
	require.ErrorIs(t, err, ErrInvalidQuery)

	_, err = fx.svc.UpdateAgent(ctx, admin(tenantB), "b1", map[string]any{"name": "x"})
	require.ErrorIs(t, err, ErrFeatureDisabled)
}

func TestListCalls(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	pg, err := fx.svc.ListCalls(ctx, admin(tenantA), CallQuery{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2", "c3", "c4"}, callIDs(pg.Items))
	require.Equal(t, 1, pg.TotalPages)

	pg, err = fx.svc.ListCalls(ctx, user(), CallQuery{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c2"}, callIDs(pg.Items))

	pg, err = fx.svc.ListCalls(ctx, admin(tenantA), CallQuery{Limit: 10, Status: "Completed"})
	require.NoError(t, err)
	require.Equal(t, []string{"c1", "c3"}, callIDs(pg.Items))

	pg, err = fx.svc.ListCalls(ctx, user(), CallQuery{Limit: 10, AgentID: "a2"})
	require.NoError(t, err)
	require.Empty(t, pg.Items)

	_, err = fx.svc.ListCalls(ctx, user(), CallQuery{Limit: 500})
	require.ErrorIs(t, err, ErrInvalidQuery)
}

func TestListCalls_CachePagination(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.ListCalls(ctx, admin(tenantA), CallQuery{Limit: 10})
	require.NoError(t, err)

	fx.up.setErr(errDown)
	pg, err := fx.svc.ListCalls(ctx, admin(tenantA), CallQuery{Limit: 3, Page: 1})
	require.NoError(t, err)
	require.Equal(t, cache.SourceCache, pg.Source)
	require.Equal(t, 2, pg.TotalPages)
	require.Equal(t, []string{"c1", "c2", "c3"}, callIDs(pg.Items))

	pg, err = fx.svc.ListCalls(ctx, admin(tenantA), CallQuery{Limit: 3, Page: 2})
	require.NoError(t, err)
	require.Equal(t, []string{"c4"}, callIDs(pg.Items))
}

func TestGetCall(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.ListAgents(ctx, admin(tenantA))
	require.NoError(t, err)

	c, _, err := fx.svc.GetCall(ctx, user(), "c1")
	require.NoError(t, err)
	require.Equal(t, "Reception", c.AgentName)

	_, _, err = fx.svc.GetCall(ctx, user(), "c3")
	require.ErrorIs(t, err, ErrNotFound)

	// orphan calls are admin-only
	_, _, err = fx.svc.GetCall(ctx, user(), "c4")
	require.ErrorIs(t, err, ErrNotFound)
	_, _, err = fx.svc.GetCall(ctx, admin(tenantA), "c4")
	require.NoError(t, err)

	_, _, err = fx.svc.GetCall(ctx, admin(tenantA), "nope")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPhoneNumbersAndKnowledgeBases(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	nums, err := fx.svc.ListPhoneNumbers(ctx, user())
	require.NoError(t, err)
	require.Len(t, nums.Items, 1)
	require.Equal(t, "p1", nums.Items[0].ID)

	nums, err = fx.svc.ListPhoneNumbers(ctx, admin(tenantA))
	require.NoError(t, err)
	require.Len(t, nums.Items, 3)

	kbs, err := fx.svc.ListKnowledgeBases(ctx, user())
	require.NoError(t, err)
	require.Empty(t, kbs.Items)
}

func TestOverview_DegradesOnProviderErrors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	w := reporting.Window{Start: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), End: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}

	_, err := fx.svc.ListAgents(ctx, admin(tenantA))
	require.NoError(t, err)
	ov, src, err := fx.svc.Overview(ctx, admin(tenantA), w)
	require.NoError(t, err)
	require.Equal(t, cache.SourceLive, src)
	require.Equal(t, 4, ov.TotalCalls)
	require.Equal(t, 50.0, ov.CompletionRate)
	require.Equal(t, "Reception", ov.Agents[0].AgentName)

	fx.up.setErr(errRejected)
	ov, src, err = fx.svc.Overview(ctx, user(), w)
	require.NoError(t, err)
	require.Equal(t, cache.SourceCache, src)
	require.Equal(t, 2, ov.TotalCalls)

	empty := newFixture(t)
	empty.up.setErr(errDown)
	ov, _, err = empty.svc.Overview(ctx, admin(tenantA), w)
	require.NoError(t, err)
	require.Zero(t, ov.TotalCalls)
	require.Zero(t, ov.CompletionRate)
}

func TestAllCallsFollowsPages(t *testing.T) {
	fx := newFixture(t)
	cs, err := fx.svc.TenantCalls(context.Background(), tenantA)
	require.NoError(t, err)
	require.Len(t, cs, 4)
	require.Equal(t, 2, fx.up.hits)
}

func TestTrendsAndPeakHours(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, _, err := fx.svc.Trends(ctx, admin(tenantA), 3)
	require.ErrorIs(t, err, reporting.ErrInvalidRequest)
	_, _, err = fx.svc.PeakHours(ctx, admin(tenantA), 91)
	require.ErrorIs(t, err, reporting.ErrInvalidRequest)

	pts, _, err := fx.svc.Trends(ctx, admin(tenantA), 7)
	require.NoError(t, err)
	require.Len(t, pts, 8)
	require.Equal(t, "2026-10-19", pts[len(pts)-1].Date)
	require.Equal(t, 1, pts[len(pts)-1].Calls)

	ph, _, err := fx.svc.PeakHours(ctx, user(), 7)
	require.NoError(t, err)
	require.Equal(t, 9, ph.PeakHour)
	require.Equal(t, 1, ph.PeakHourCount)
}

func TestDashboard(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	_, err := fx.svc.ListAgents(ctx, admin(tenantA))
	require.NoError(t, err)

	d, _, err := fx.svc.Dashboard(ctx, admin(tenantA), reporting.Window{})
	require.NoError(t, err)
	require.Equal(t, 4, d.TotalCalls)
	require.Equal(t, 1, d.CallsToday)
	require.Equal(t, 3, d.TotalAgents)
	require.Equal(t, 2, d.ActiveAgents)

	d, _, err = fx.svc.Dashboard(ctx, user(), reporting.Window{})
	require.NoError(t, err)
	require.Equal(t, 2, d.TotalCalls)
	require.Equal(t, 1, d.TotalAgents)
	require.Equal(t, 1, d.ActiveAgents)
	require.Equal(t, 50.0, d.ResponseRate)
}

func TestKnownAgentAndRefresh(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	hits := fx.up.hits
	known, err := fx.svc.KnownAgents(ctx, tenantA)
	require.NoError(t, err)
	require.Equal(t, 1, fx.up.hits-hits)
	require.Contains(t, known, "a2")
	require.NotContains(t, known, "b1")

	l, err := fx.svc.TenantAgents(ctx, tenantA)
	require.NoError(t, err)
	require.Equal(t, []string{"a3", "a2", "a1"}, agentIDs(l.Items))

	require.NoError(t, fx.svc.RefreshTenant(ctx, tenantA))
	phones, err := fx.repo.ReadAll(ctx, tenantA, cache.KindPhoneNumber)
	require.NoError(t, err)
	require.Len(t, phones, 3)

	fx.up.setErr(errRejected)
	require.ErrorIs(t, fx.svc.RefreshTenant(ctx, tenantA), upstream.ErrRejected)
}
