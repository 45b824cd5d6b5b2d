// Package access derives what subset of a tenant's agent-linked resources a
// principal may see.
//
// A Scope is computed per request from the principal's role and current
// assignments and is never stored. Resources that carry no agent id are
// visible only to Unrestricted scopes.
package access

import (
	"sort"

	"agent-console/internal/rbac"
)

// Scope is either Unrestricted or Restricted to a set of agent external ids.
// The zero value is Restricted to the empty set and sees nothing.
type Scope struct {
	unrestricted bool
	agents       map[string]struct{}
}

func Unrestricted() Scope {
	return Scope{unrestricted: true}
}

func Restricted(agentIDs ...string) Scope {
	set := make(map[string]struct{}, len(agentIDs))
	for _, id := range agentIDs {
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return Scope{agents: set}
}

// ResolveScope maps a role and its assignments to a Scope. Admin roles see
// everything in their tenant; every other role sees only assigned agents.
func ResolveScope(role rbac.Role, assignedAgentIDs []string) Scope {
	if role.IsAdmin() {
		return Unrestricted()
	}
	return Restricted(assignedAgentIDs...)
}

func (s Scope) IsUnrestricted() bool { return s.unrestricted }

// Visible reports whether a resource linked to agentID may be shown.
func (s Scope) Visible(agentID string) bool {
	if s.unrestricted {
		return true
	}
	if agentID == "" {
		return false
	}
	_, ok := s.agents[agentID]
	return ok
}

// AgentIDs returns the restricted set in sorted order, or nil when unrestricted.
func (s Scope) AgentIDs() []string {
	if s.unrestricted {
		return nil
	}
	out := make([]string, 0, len(s.agents))
	for id := range s.agents {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len is the number of assigned agents for a restricted scope, -1 when unrestricted.
func (s Scope) Len() int {
	if s.unrestricted {
		return -1
	}
	return len(s.agents)
}

// Filter keeps the items whose agent id is visible, preserving order.
func Filter[T any](s Scope, items []T, agentID func(T) string) []T {
	if s.unrestricted {
		return items
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if s.Visible(agentID(it)) {
			out = append(out, it)
		}
	}
	return out
}
