package access

import (
	"testing"

	"agent-console/internal/rbac"

	"github.com/stretchr/testify/require"
)

type item struct {
	ID      string
	AgentID string
}

func agentOf(i item) string { return i.AgentID }

func TestResolveScope(t *testing.T) {
	require.True(t, ResolveScope(rbac.RoleSuperAdmin, nil).IsUnrestricted())
	require.True(t, ResolveScope(rbac.RoleTenantAdmin, []string{"a"}).IsUnrestricted())

	s := ResolveScope(rbac.RoleUser, []string{"b", "a", "a"})
	require.False(t, s.IsUnrestricted())
	require.Equal(t, []string{"a", "b"}, s.AgentIDs())
	require.Equal(t, 2, s.Len())

	require.False(t, ResolveScope(rbac.Role("bogus"), []string{"a"}).IsUnrestricted())
}

func TestEmptyRestrictedSeesNothing(t *testing.T) {
	s := ResolveScope(rbac.RoleUser, nil)
	items := []item{{"1", "a"}, {"2", ""}, {"3", "b"}}
	require.Empty(t, Filter(s, items, agentOf))

	var zero Scope
	require.False(t, zero.Visible("a"))
}

func TestFilter_StableAndMembershipBased(t *testing.T) {
	s := Restricted("b", "c")
	items := []item{{"1", "c"}, {"2", "a"}, {"3", "b"}, {"4", "c"}}

	got := Filter(s, items, agentOf)
	require.Equal(t, []item{{"1", "c"}, {"3", "b"}, {"4", "c"}}, got)
}

func TestOrphanResources(t *testing.T) {
	orphan := item{"1", ""}
	require.True(t, Unrestricted().Visible(orphan.AgentID))
	require.False(t, Restricted("a").Visible(orphan.AgentID))
}

func TestScopeMonotonicity(t *testing.T) {
	items := []item{{"1", "a"}, {"2", "b"}, {"3", "c"}, {"4", ""}}
	small := Filter(Restricted("a"), items, agentOf)
	large := Filter(Restricted("a", "b"), items, agentOf)
	all := Filter(Unrestricted(), items, agentOf)

	require.Subset(t, large, small)
	require.Subset(t, all, large)
	require.Len(t, all, len(items))
}
