package templates

import (
	"context"
	"testing"
	"time"

	"agent-console/internal/audit"
	"agent-console/internal/directory"
	"agent-console/internal/rbac"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

var (
	tenantA = uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	tenantB = uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000002")
)

type fixture struct {
	svc   *Service
	audit *audit.MemoryRepo
	admin directory.Actor
}

func newFixture(t *testing.T, repo Repository) fixture {
	t.Helper()
	auditRepo := audit.NewMemoryRepo()
	svc := NewService(repo, audit.NewService(auditRepo), nil)
	svc.clock = func() time.Time { return time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC) }
	return fixture{
		svc:   svc,
		audit: auditRepo,
		admin: directory.Actor{UserID: uuid.New(), TenantID: tenantA, Role: rbac.RoleTenantAdmin, IP: "10.0.0.1"},
	}
}

func salon() NewTemplate {
	return NewTemplate{Name: "Front desk", Greeting: "Hello!", SystemPrompt: "Book appointments."}
}

func TestCreate_DefaultsAndValidation(t *testing.T) {
	f := newFixture(t, NewMemoryRepo())
	ctx := context.Background()

	tpl, err := f.svc.Create(ctx, f.admin, salon())
	require.NoError(t, err)
	require.Equal(t, tenantA, tpl.TenantID)
	require.Equal(t, DefaultCategory, tpl.Category)
	require.Equal(t, DefaultIcon, tpl.Icon)
	require.Equal(t, DefaultVoice, tpl.Voice)
	require.Equal(t, DefaultLanguage, tpl.Language)
	require.False(t, tpl.IsPreset)
	require.Equal(t, f.admin.UserID, tpl.CreatedBy)

	_, err = f.svc.Create(ctx, f.admin, salon())
	require.ErrorIs(t, err, ErrConflict)

	other := f.admin
	other.TenantID = tenantB
	_, err = f.svc.Create(ctx, other, salon())
	require.NoError(t, err, "names are unique per tenant")

	bad := salon()
	bad.Name = "Other"
	bad.Category = "space"
	_, err = f.svc.Create(ctx, f.admin, bad)
	require.ErrorIs(t, err, ErrInvalidArgument)

	bad = salon()
	bad.Name = "Other"
	bad.SystemPrompt = "  "
	_, err = f.svc.Create(ctx, f.admin, bad)
	require.ErrorIs(t, err, ErrInvalidArgument)

	evs := f.audit.Events()
	require.Len(t, evs, 2)
	require.Equal(t, audit.EventTemplateCreated, evs[0].Type)
}

func TestSeedPresets_SkipsExisting(t *testing.T) {
	f := newFixture(t, NewMemoryRepo())
	ctx := context.Background()

	res, err := f.svc.SeedPresets(ctx)
	require.NoError(t, err)
	require.Equal(t, len(presets), res.Created)
	require.Equal(t, len(presets), res.TotalPresets)

	res, err = f.svc.SeedPresets(ctx)
	require.NoError(t, err)
	require.Zero(t, res.Created)

	list, err := f.svc.Presets(ctx)
	require.NoError(t, err)
	require.Len(t, list, len(presets))
	for i := 1; i < len(list); i++ {
		prev, cur := list[i-1], list[i]
		require.True(t, prev.Category < cur.Category || (prev.Category == cur.Category && prev.Name <= cur.Name))
	}
}

func TestPresetsAreReadOnly(t *testing.T) {
	f := newFixture(t, NewMemoryRepo())
	ctx := context.Background()
	_, err := f.svc.SeedPresets(ctx)
	require.NoError(t, err)

	list, err := f.svc.Presets(ctx)
	require.NoError(t, err)
	preset := list[0]

	got, err := f.svc.Get(ctx, tenantB, preset.ID)
	require.NoError(t, err)
	require.True(t, got.IsPreset)

	name := "Mine now"
	_, err = f.svc.Update(ctx, f.admin, preset.ID, Patch{Name: &name})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, f.admin, preset.ID), ErrNotFound)

	used, err := f.svc.Use(ctx, tenantA, preset.ID)
	require.NoError(t, err)
	require.Equal(t, 1, used.UsageCount)
}

func TestListOrdersPresetsFirstThenUsage(t *testing.T) {
	f := newFixture(t, NewMemoryRepo())
	ctx := context.Background()
	_, err := f.svc.SeedPresets(ctx)
	require.NoError(t, err)

	a, err := f.svc.Create(ctx, f.admin, salon())
	require.NoError(t, err)
	in := salon()
	in.Name = "Bakery"
	in.Category = "food"
	b, err := f.svc.Create(ctx, f.admin, in)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = f.svc.Use(ctx, tenantA, b.ID)
		require.NoError(t, err)
	}

	all, err := f.svc.List(ctx, tenantA, Filter{IncludePresets: true})
	require.NoError(t, err)
	require.Len(t, all, len(presets)+2)
	require.True(t, all[0].IsPreset)
	require.Equal(t, b.ID, all[len(all)-2].ID)
	require.Equal(t, a.ID, all[len(all)-1].ID)

	own, err := f.svc.List(ctx, tenantA, Filter{})
	require.NoError(t, err)
	require.Len(t, own, 2)

	food, err := f.svc.List(ctx, tenantA, Filter{Category: "food", IncludePresets: true})
	require.NoError(t, err)
	for _, tpl := range food {
		require.Equal(t, "food", tpl.Category)
	}

	none, err := f.svc.List(ctx, tenantB, Filter{})
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = f.svc.List(ctx, tenantA, Filter{Category: "space"})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestUpdateAndDelete(t *testing.T) {
	f := newFixture(t, NewMemoryRepo())
	ctx := context.Background()

	tpl, err := f.svc.Create(ctx, f.admin, salon())
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, f.admin, tpl.ID, Patch{})
	require.ErrorIs(t, err, ErrInvalidArgument)

	voice, greeting := "claire", "Bonjour !"
	got, err := f.svc.Update(ctx, f.admin, tpl.ID, Patch{Voice: &voice, Greeting: &greeting})
	require.NoError(t, err)
	require.Equal(t, "claire", got.Voice)
	require.Equal(t, "Bonjour !", got.Greeting)
	require.Equal(t, tpl.Name, got.Name)

	other := f.admin
	other.TenantID = tenantB
	_, err = f.svc.Update(ctx, other, tpl.ID, Patch{Voice: &voice})
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.Delete(ctx, other, tpl.ID), ErrNotFound)

	require.NoError(t, f.svc.Delete(ctx, f.admin, tpl.ID))
	_, err = f.svc.Get(ctx, tenantA, tpl.ID)
	require.ErrorIs(t, err, ErrNotFound)

	evs := f.audit.Events()
	require.Len(t, evs, 3)
	require.Equal(t, audit.EventTemplateUpdated, evs[1].Type)
	require.Equal(t, audit.EventTemplateDeleted, evs[2].Type)
}
